package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var deadLettersCmd = &cobra.Command{
	Use:   "deadletters",
	Short: "Inspect or replay tool executions that exhausted their retries",
}

var deadLettersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending dead letters",
	Run:   runDeadLettersList,
}

var deadLettersReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay every pending dead letter once",
	Run:   runDeadLettersReplay,
}

func init() {
	deadLettersCmd.AddCommand(deadLettersListCmd, deadLettersReplayCmd)
	rootCmd.AddCommand(deadLettersCmd)
}

func runDeadLettersList(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	app := newGateway(ctx, cfg)
	defer app.Close()

	letters, err := app.DeadLetters().List(ctx)
	if err != nil {
		slog.Error("Failed to list dead letters", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTOOL\tATTEMPTS\tLAST KIND\tLAST ERROR\tCREATED")
	for _, dl := range letters {
		kind, msg := "-", "-"
		if dl.LastError != nil {
			kind, msg = string(dl.LastError.Kind), dl.LastError.Message
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			dl.ID, dl.Tool, dl.Attempts, kind, msg, dl.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func runDeadLettersReplay(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	app := newGateway(ctx, cfg)
	defer app.Close()

	res, err := app.Replayer().ReplayAll(ctx)
	if err != nil {
		slog.Error("Replay failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("resolved=%d failed=%d skipped=%d\n", res.Resolved, res.Failed, res.Skipped)
}

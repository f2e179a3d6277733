package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/toolgate/internal/core/failure"
)

var failuresLimit int

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show recent classified failures and totals per kind",
	Run:   runFailures,
}

func init() {
	failuresCmd.Flags().IntVar(&failuresLimit, "limit", 20, "number of records to show")
	rootCmd.AddCommand(failuresCmd)
}

func runFailures(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	app := newGateway(ctx, cfg)
	defer app.Close()

	records, err := app.Failures().Recent(ctx, failuresLimit)
	if err != nil {
		slog.Error("Failed to read failure log", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tOPERATION\tKIND\tCODE\tATTEMPTS\tMESSAGE")
	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.CreatedAt.Format(time.RFC3339), r.Operation, r.Kind, r.ErrorCode, r.Attempts, r.Message)
	}
	_ = w.Flush()

	counts, err := app.Failures().CountByKind(ctx)
	if err != nil {
		slog.Error("Failed to count failures", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "KIND\tRETRYABLE\tTOTAL")
	for _, k := range failure.Kinds() {
		_, _ = fmt.Fprintf(w, "%s\t%t\t%d\n", k, k.Retryable(), counts[k])
	}
	_ = w.Flush()
}

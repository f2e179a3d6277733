package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/toolgate/internal/core/failure"
)

var probeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check the vendor key and backend once and print the classified result",
	Run:   runProbe,
}

func init() {
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", time.Minute, "overall probe timeout")
	rootCmd.AddCommand(probeCmd)
}

type probeResult struct {
	target string
	err    error
}

func runProbe(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	app := newGateway(ctx, cfg)
	defer app.Close()

	var results []probeResult
	_, err := app.Vendor().ValidateKey(ctx, cfg.Vendor.APIKey)
	results = append(results, probeResult{target: "vendor", err: err})
	if b := app.Backend(); b != nil {
		results = append(results, probeResult{target: "backend", err: b.Check(ctx)})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "TARGET\tSTATUS\tKIND\tRETRYABLE\tMESSAGE\tACTION")
	failed := false
	for _, r := range results {
		d := failure.ClassifyError(r.err)
		if d == nil {
			_, _ = fmt.Fprintf(w, "%s\tok\t-\t-\t-\t-\n", r.target)
			continue
		}
		failed = true
		_, _ = fmt.Fprintf(w, "%s\tfailed\t%s\t%t\t%s\t%s\n",
			r.target, d.Kind, d.Retryable(), d.Message, d.SuggestedAction)
	}
	_ = w.Flush()

	if failed {
		os.Exit(1)
	}
}

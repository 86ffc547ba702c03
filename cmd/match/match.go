// Package match implements the match subcommand: it re-runs candidate
// matching over stored records that never got a source link.
package match

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/logging"
	"github.com/tkoskela/scenefuse/internal/pipeline"
)

// Command creates the match command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "match",
		Short: "Match unlinked scraped records against canonical entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}
}

func run(settings *conf.Settings) error {
	p, err := pipeline.FromSettings(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Store().Close()
	}()

	report, err := p.MatchUnlinked(context.Background())
	if err != nil {
		return err
	}

	logging.Structured().With("service", "cli").Info("match run complete",
		"run_id", report.RunID,
		"processed", report.Processed,
		"matched", report.Matched,
		"created", report.Created,
		"failed", report.Failed)
	fmt.Printf("run %s: processed %d, matched %d, created %d, failed %d\n",
		report.RunID, report.Processed, report.Matched, report.Created, report.Failed)
	return nil
}

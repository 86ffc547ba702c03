// Package dismiss implements the dismiss subcommand: it excludes a scraped
// event's pending changes from auto-apply.
package dismiss

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/pipeline"
)

// Command creates the dismiss command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss [scraped-event-id]",
		Short: "Exclude a scraped event's pending changes from auto-apply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			return run(settings, uint(id))
		},
	}
}

func run(settings *conf.Settings, id uint) error {
	p, err := pipeline.FromSettings(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Store().Close()
	}()

	if err := p.DismissEvent(id); err != nil {
		return err
	}
	fmt.Printf("dismissed scraped event %d\n", id)
	return nil
}

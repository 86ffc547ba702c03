// Package refresh implements the refresh subcommand: it re-fuses one
// canonical entity from its linked source records.
package refresh

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/pipeline"
)

// Command creates the refresh command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [kind] [id]",
		Short: "Re-fuse a canonical entity from its linked sources",
		Long:  `Re-fuse a canonical entity by kind (event, venue, artist or organizer) and numeric id.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[1], err)
			}
			return run(settings, args[0], uint(id))
		},
	}
}

func run(settings *conf.Settings, kind string, id uint) error {
	p, err := pipeline.FromSettings(settings)
	if err != nil {
		return err
	}
	defer func() {
		_ = p.Store().Close()
	}()

	if err := p.Refresh(kind, id); err != nil {
		return err
	}
	fmt.Printf("refreshed %s %d\n", kind, id)
	return nil
}

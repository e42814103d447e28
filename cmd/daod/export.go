package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"daochain/config"
	"daochain/indexer"
)

func exportEventsCommand() *cobra.Command {
	var (
		dsn    string
		out    string
		filter indexer.EventFilter
	)
	cmd := &cobra.Command{
		Use:   "export-events",
		Short: "Export archived events to a Parquet file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn == "" {
				if cfg := config.FromContext(cmd.Context()); cfg != nil {
					dsn = cfg.Indexer.DSN
				}
			}
			if strings.TrimSpace(dsn) == "" {
				return errors.New("no indexer DSN: pass --dsn or set indexer.DSN in the config")
			}
			if strings.TrimSpace(out) == "" {
				return errors.New("--out is required")
			}
			if filter.ToHeight != 0 && filter.ToHeight < filter.FromHeight {
				return fmt.Errorf("--to %d is below --from %d", filter.ToHeight, filter.FromHeight)
			}

			ix, err := indexer.Open(dsn, nil)
			if err != nil {
				return err
			}
			defer ix.Close()

			rows, err := ix.ExportParquet(cmd.Context(), out, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d events to %s\n", rows, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "indexer DSN (defaults to indexer.DSN from the config)")
	cmd.Flags().StringVar(&out, "out", "events.parquet", "output file")
	cmd.Flags().Uint64Var(&filter.FromHeight, "from", 0, "first block height")
	cmd.Flags().Uint64Var(&filter.ToHeight, "to", 0, "last block height, 0 for no bound")
	cmd.Flags().StringVar(&filter.Module, "module", "", "only events of this module")
	cmd.Flags().StringVar(&filter.Type, "type", "", "only events of this type")
	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exiliumcore/exilium"
)

func importEconomyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-economy <file>",
		Short: "Replace the economy reference data from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var economia exilium.EconomiaConfig
			if err := json.Unmarshal(raw, &economia); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			core, err := exilium.Init(cmd.Context(), log, cfg, nil)
			if err != nil {
				return err
			}
			defer core.Close(cmd.Context())

			if err := core.ImportEconomia(cmd.Context(), &economia); err != nil {
				return err
			}
			log.Info("economy imported", zap.String("file", args[0]))
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exiliumcore/exilium"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Copy the local file state into the database",
		Long: "Pushes every user record, market listing and the economy reference\n" +
			"data from the fallback file into the configured database. Used to seed\n" +
			"a fresh database from a file that accumulated state while running in\n" +
			"fallback mode.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.MongoURI == "" {
				return fmt.Errorf("migrate requires mongo_uri to be set")
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx := cmd.Context()

			file, err := exilium.OpenFileStore(cfg.DataPath)
			if err != nil {
				return err
			}
			mongo, err := exilium.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
			if err != nil {
				return err
			}
			defer mongo.Close(ctx)

			users, err := file.ListUsers(ctx)
			if err != nil {
				return err
			}
			for id, rec := range users {
				if err := mongo.SetUser(ctx, id, rec); err != nil {
					return fmt.Errorf("migrate user %s: %w", id, err)
				}
			}
			listings, err := file.ListListings(ctx)
			if err != nil {
				return err
			}
			for _, l := range listings {
				if err := mongo.PutListing(ctx, l); err != nil {
					return fmt.Errorf("migrate listing %s: %w", l.ID, err)
				}
			}
			economia, err := file.GetEconomia(ctx)
			if err != nil {
				return err
			}
			if economia != nil {
				if err := mongo.SetEconomia(ctx, economia); err != nil {
					return err
				}
			}
			log.Info("migration complete",
				zap.Int("users", len(users)),
				zap.Int("listings", len(listings)),
				zap.Bool("economia", economia != nil))
			return nil
		},
	}
}

package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/seoinsight/seoinsight/internal/store"
)

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply the embedded migrations: credential settings, the conversation log,
the analytics tables, the read-only query function and the tenant row
security policies.

Examples:
  seoinsight migrate
  seoinsight migrate --status`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "print migration status instead of applying")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if err := requireDatabase(); err != nil {
		return err
	}

	db, err := store.Open(cmd.Context(), store.Options{DSN: cfg.DatabaseURL, MaxOpenConns: 2})
	if err != nil {
		return err
	}
	defer db.Close()

	if migrateStatus {
		return store.MigrationStatus(db.DB())
	}
	if err := store.Migrate(db.DB()); err != nil {
		return err
	}
	log.Info().Msg("migrations applied")
	return nil
}

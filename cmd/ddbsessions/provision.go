package main

import (
	"github.com/spf13/cobra"
)

var dropTable bool

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the session table if it does not exist",
	Long: `Create the session table if it does not exist, and wait until it is
ready for use. For DynamoDB, time to live is enabled on the expires_at
attribute so that expired sessions are deleted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer db.close()

		provisioned, err := db.provision(cmd.Context(), dropTable)
		if err != nil {
			return err
		}
		if provisioned {
			logger.Info("session storage ready", "backend", cfg.Backend)
		} else {
			logger.Info("session storage needs no provisioning", "backend", cfg.Backend)
		}
		return nil
	},
}

func init() {
	provisionCmd.Flags().BoolVar(&dropTable, "drop", false, "drop the table first (all sessions are lost)")
}

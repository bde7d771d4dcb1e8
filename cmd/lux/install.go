package main

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/luvu182/luxbot/internal/config"
	"github.com/luvu182/luxbot/internal/service/installer"
	"github.com/luvu182/luxbot/pkg/log"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:           "install",
	Short:         "Configure LuxBot interactively",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting installation process")

		// run wizard (includes save step)
		if _, err := installer.RunWizard(); err != nil {
			return err
		}

		runtimePath := config.GetRuntimePath()
		envPath := filepath.Join(runtimePath, ".env")
		if err := godotenv.Load(envPath); err != nil {
			logger.Warn().Err(err).Str("path", envPath).Msg("failed to load .env file")
		}

		logger.Info().Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Installation complete! You can now run 'lux start'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

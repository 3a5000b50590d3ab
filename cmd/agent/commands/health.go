package commands

import (
	"context"

	"github.com/benmeehan/findmy-agent/internal/constants"
	"github.com/benmeehan/findmy-agent/pkg/backend"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		defer rt.closer.Close()

		client := backend.NewClient(rt.config.Server.URL, rt.config.Server.Timeout, constants.UserAgent())
		status, err := client.Health(context.Background())
		if err != nil {
			rt.logger.Error().Err(err).Str("server", client.ServerURL()).Msg("Server health check failed")
			return err
		}

		rt.logger.Info().Interface("health", status).Str("server", client.ServerURL()).Msg("Connected to server")
		return nil
	},
}

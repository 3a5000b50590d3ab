package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/benmeehan/findmy-agent/internal/constants"
	"github.com/benmeehan/findmy-agent/internal/services"
	"github.com/benmeehan/findmy-agent/pkg/backend"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import historical locations from a CSV file",
	Long: `Reads a CSV with the header DeviceID,Latitude,Longitude,Timestamp
(extra columns allowed), drops duplicate rows and uploads the rest to the
backend in batches.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().String("file", "", "Path to CSV file")
	importCmd.Flags().Int("batch", 0, "Batch size (default from config, 100)")
	importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.closer.Close()

	path, _ := cmd.Flags().GetString("file")
	batchSize := rt.config.Import.BatchSize
	if b, _ := cmd.Flags().GetInt("batch"); b > 0 {
		batchSize = b
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := backend.NewClient(rt.config.Server.URL, rt.config.Import.Timeout, constants.UserAgent())
	svc := services.NewImportService(batchSize, client, rt.fileClient, rt.logger)

	summary, err := svc.Import(ctx, path)
	if err != nil {
		rt.logger.Error().Err(err).Msg("Import failed")
		return err
	}

	rt.logger.Info().
		Int("rows", summary.Rows).
		Int("unique", summary.Unique).
		Int("failed_batches", summary.FailedBatches).
		Msg("Import summary")
	return nil
}

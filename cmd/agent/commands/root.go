package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benmeehan/findmy-agent/internal/constants"
	"github.com/benmeehan/findmy-agent/internal/utils"
	"github.com/benmeehan/findmy-agent/pkg/file"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   constants.BinaryName,
	Short: "Forward Find My device locations to a web backend",
	Long: `Watches the local Find My items cache and sends new device locations
to the FindMyCat backend for storage and visualization.

Running without a subcommand starts the polling client.`,
	Version:       constants.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPoller,
}

func init() {
	viper.SetEnvPrefix("findmy")
	viper.AutomaticEnv()
	replacer := strings.NewReplacer("-", "_")
	viper.SetEnvKeyReplacer(replacer)

	flags := rootCmd.PersistentFlags()
	flags.String("config", constants.DefaultConfigFile, "Path to the YAML configuration file")
	flags.String("server", "", "Backend base URL")
	flags.String("cache", "", "Path to the Find My items cache")
	flags.String("log-file", "", "Append JSON logs to this file")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")

	for _, name := range []string{"config", "server", "cache", "log-file", "verbose"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}

	addRunFlags(rootCmd)
	rootCmd.AddCommand(importCmd, healthCmd)
}

// Execute is the main entry point for our cobra commands
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime bundles what every subcommand needs.
type runtime struct {
	config     *utils.Config
	fileClient file.FileOperations
	logger     zerolog.Logger
	closer     io.Closer
}

// loadRuntime reads the config file, applies flag and environment
// overrides and builds the logger.
func loadRuntime() (*runtime, error) {
	fileClient := file.NewFileService()

	config, err := loadConfig(fileClient)
	if err != nil {
		return nil, err
	}

	if viper.IsSet("server") {
		config.Server.URL = viper.GetString("server")
	}
	if viper.IsSet("cache") {
		config.Cache.Path = viper.GetString("cache")
	}
	if viper.IsSet("log-file") {
		config.Logging.File = viper.GetString("log-file")
	}

	logger, closer, err := utils.NewLogger(config.Logging.Level, config.Logging.File, viper.GetBool("verbose"))
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &runtime{
		config:     config,
		fileClient: fileClient,
		logger:     logger,
		closer:     closer,
	}, nil
}

// loadConfig falls back to defaults when the default config file is absent.
// An explicitly named file must exist.
func loadConfig(fileClient file.FileOperations) (*utils.Config, error) {
	path := viper.GetString("config")

	exists, err := fileClient.IsFileExists(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}
	if !exists {
		if viper.IsSet("config") && path != constants.DefaultConfigFile {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return utils.DefaultConfig(), nil
	}

	config, err := utils.LoadConfig(path, fileClient)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return config, nil
}

package constants

import "fmt"

const (
	// BinaryName is the name the CLI is invoked as.
	BinaryName = "findmy-agent"

	// DefaultConfigFile is read when --config is not given and the file exists.
	DefaultConfigFile = "configs/config.yaml"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

// UserAgent is sent with every backend request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", BinaryName, Version)
}

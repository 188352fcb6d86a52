package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-lgtv/internal/infrastructure/config"
)

// defaultConfigPath is used when neither --config nor LGTV_BRIDGE_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// configEnv names the environment variable holding the config path.
const configEnv = "LGTV_BRIDGE_CONFIG"

// configPath is bound to the persistent --config flag.
var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lgtvbridge",
		Short: "LG TV RS232 bridge for Gray Logic",
		Long: `lgtvbridge controls LG televisions through their RS232 service port.

Each TV is validated before it is stored: the bridge asks for power status,
and if the set does not answer it tries to wake it twice. A TV that answers
is exposed as a media player and a remote over MQTT and the HTTP API.

Configuration is read from --config, else $LGTV_BRIDGE_CONFIG, else
configs/config.yaml. Built-in defaults apply when the default file is absent.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration file")

	root.AddCommand(
		newServeCmd(),
		newPortsCmd(),
		newEntriesCmd(),
		newProvisionCmd(),
		newOptionsCmd(),
		newRemoveCmd(),
		newTokenCmd(),
	)
	return root
}

// resolveConfigPath returns the configuration path and whether it was
// chosen explicitly.
func resolveConfigPath() (string, bool) {
	if configPath != "" {
		return configPath, true
	}
	if path := os.Getenv(configEnv); path != "" {
		return path, true
	}
	return defaultConfigPath, false
}

// loadConfig loads the configuration. An explicitly named file must exist;
// a missing default file falls back to built-in defaults.
func loadConfig() (*config.Config, error) {
	path, explicit := resolveConfigPath()

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		if verr := cfg.Validate(); verr != nil {
			return nil, fmt.Errorf("validating default config: %w", verr)
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("loading config %s: %w", path, err)
}

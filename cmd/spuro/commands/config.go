package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/spuro/spuro/config"
	"github.com/spuro/spuro/errors"
)

// ConfigCmd manages Spuro configuration.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit configuration",
	Long: `Display and manage Spuro configuration.

Configuration sources (in order of precedence):
1. Environment variables (SPURO_* prefix)
2. Project config (./spuro.toml, searches up directories)
3. User config (~/.spuro/spuro.toml)
4. System config (/etc/spuro/config.toml)
5. Default values

Examples:
  spuro config show                       # Merged configuration
  spuro config get database.path          # One value
  spuro config set server.port 9000       # Persist to the user config
  spuro config validate`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value by dot-notation key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value to the user config file",
	Long: `Write one setting to the user config file (~/.spuro/spuro.toml).
The previous file is kept as a rotating backup.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runConfigValidate,
}

var configShowFormat string

func init() {
	configShowCmd.Flags().StringVar(&configShowFormat, "format", "toml", "Output format: toml, json")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configSetCmd)
	ConfigCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	switch configShowFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to JSON")
		}
		fmt.Println(string(data))
	case "toml":
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config to TOML")
		}
		fmt.Printf("# Spuro configuration\n%s", string(data))
	default:
		return errors.Newf("unsupported format: %s (supported: toml, json)", configShowFormat)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	v := config.GetViper()
	if !v.IsSet(key) {
		return errors.Newf("configuration key %q not found", key)
	}
	fmt.Println(v.Get(key))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	section, field, found := strings.Cut(key, ".")
	if !found {
		return errors.Newf("key %q must be section.field (e.g. server.port)", key)
	}

	if err := config.UpdateSetting(section, field, coerceConfigValue(value)); err != nil {
		return errors.Wrapf(err, "failed to set %s", key)
	}

	// Re-validate the merged result so a bad value is caught immediately,
	// not at the next server start.
	if _, err := config.Load(); err != nil {
		return errors.Wrapf(err, "setting saved but configuration is now invalid")
	}
	fmt.Printf("✓ Set %s = %s\n", key, value)
	return nil
}

// coerceConfigValue keeps numbers and booleans typed in the TOML output.
func coerceConfigValue(raw string) interface{} {
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	var i int64
	if _, err := fmt.Sscanf(raw, "%d", &i); err == nil && fmt.Sprintf("%d", i) == raw {
		return i
	}
	return raw
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := config.Validate(cfg); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	fmt.Println("✓ Configuration is valid")
	return nil
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/patientsim/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage patientsim configuration",
	Long: `Manage patientsim configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (PATIENTSIM_*, e.g. PATIENTSIM_STORE_DRIVER)
3. Config file (~/.patientsim/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long:  `Display the configuration after merging defaults, config file and environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Classifier.APIKey != "" {
			cfg.Classifier.APIKey = "********"
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(yamlData))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.patientsim/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}
		configPath := filepath.Join(home, ".patientsim", "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'patientsim config show' to view it, or delete it first to recreate", configPath)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		data, err := defaultConfigYAML()
		if err != nil {
			return err
		}
		if err := os.WriteFile(configPath, data, 0o600); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the effective configuration:\n  patientsim config show\n")
		return nil
	},
}

// sectionComments document each top-level section of the config file
var sectionComments = map[string]string{
	"server":     "HTTP endpoint for `patientsim serve`",
	"classifier": "Language understanding service: luis, openai or ollama.\nCredentials are best kept in LUIS_APP_ID, LUIS_SUBSCRIPTION_KEY,\nOPENAI_API_KEY or OLLAMA_BASE_URL.",
	"store":      "Conversation store: memory, disk, postgres, sqlite or mongo",
	"patients":   "Directory of patient case files (YAML or JSON)",
	"logging":    "Log level: debug, info, warn, error",
	"replay":     "Scripts replayed at once by `patientsim replay`",
}

// defaultConfigYAML renders the default config with a comment above every
// section
func defaultConfigYAML() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(model.DefaultConfig()); err != nil {
		return nil, fmt.Errorf("error encoding config: %w", err)
	}
	doc.HeadComment = "patientsim configuration\n\n" +
		"Priority: CLI flags, then PATIENTSIM_* environment variables\n" +
		"(PATIENTSIM_STORE_DRIVER overrides store.driver), then this file."
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if c, ok := sectionComments[key.Value]; ok {
			key.HeadComment = c
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
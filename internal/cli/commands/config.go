package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quickbites/storefront/internal/cli/config"
)

type configInitOptions struct {
	apiURL         string
	webURL         string
	sessionBackend string
	force          bool
}

// NewConfigCmd creates the config command
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage quickbites.yaml",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var opts configInitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write quickbites.yaml in the current directory",
		Long: `Write quickbites.yaml with the default settings, or update an existing one
with the values passed as flags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api-url", "", "Storefront API base URL")
	cmd.Flags().StringVar(&opts.webURL, "web-url", "", "Storefront web app URL")
	cmd.Flags().StringVar(&opts.sessionBackend, "session-backend", "", "Where remembered sessions are kept (keyring or file)")
	cmd.Flags().BoolVar(&opts.force, "force", false, "Overwrite an existing file with the defaults")

	return cmd
}

func runConfigInit(cmd *cobra.Command, opts configInitOptions) error {
	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	configPath := filepath.Join(currentDir, config.ConfigFileName)

	cfg := config.DefaultConfig()
	existing := false
	if _, err := os.Stat(configPath); err == nil && !opts.force {
		if cfg, err = config.LoadFile(configPath); err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		existing = true
	}

	if opts.apiURL != "" {
		cfg.APIURL = opts.apiURL
	}
	if opts.webURL != "" {
		cfg.WebURL = opts.webURL
	}
	if opts.sessionBackend != "" {
		cfg.SessionBackend = opts.sessionBackend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	if existing {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated ./%s\n", config.ConfigFileName)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created ./%s (API %s)\n", config.ConfigFileName, cfg.APIURL)
	}
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, quickbites.yaml, .env files and
QUICKBITES_* variables are applied. With --file only that file is read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if file != "" {
				cfg, err = config.LoadFile(file)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}
			return printConfig(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Read only this YAML file")
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.Path != "" {
		fmt.Fprintf(out, "# %s\n", cfg.Path)
	} else {
		fmt.Fprintln(out, "# defaults")
	}
	_, err = out.Write(data)
	return err
}

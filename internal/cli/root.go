package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quickbites/storefront/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree. load supplies each command's Env.
func NewRootCmd(load commands.Loader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "quickbites",
		Short: "QuickBites - storefront account client",
		Long: `QuickBites CLI - log in to the storefront, answer the emailed one-time
code and manage the stored session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quickbites version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewLoginCmd(load))
	rootCmd.AddCommand(commands.NewVerifyOTPCmd(load))
	rootCmd.AddCommand(commands.NewLogoutCmd(load))
	rootCmd.AddCommand(commands.NewStatusCmd(load))
	rootCmd.AddCommand(commands.NewRegisterCmd(load))
	rootCmd.AddCommand(commands.NewForgotPasswordCmd(load))
	rootCmd.AddCommand(commands.NewItemsCmd(load))
	rootCmd.AddCommand(commands.NewDashCmd(load))
	rootCmd.AddCommand(commands.NewConfigCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd(commands.LoadEnv).Execute(); err != nil {
		// Notices already told the user what went wrong
		if !commands.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return err
	}
	return nil
}

// Package app provides the entry point for the catalyst-creds service.
package app

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/catalyst-dev/catalyst-creds/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "catalyst-creds",
	DisableAutoGenTag: true,
	Short:             "Secret resolution and credential issuance for Catalyst workloads",
	Long: `catalyst-creds stores scoped environment secrets and hands short-lived
credentials to platform workloads: resolved secret bundles for environment
provisioning and GitHub tokens for pods, gated by each pod's namespace binding.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates the root command for catalyst-creds.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	viper.SetEnvPrefix("CATALYST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd)

	return rootCmd
}

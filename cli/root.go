// Package cli implements the tooltailor command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd assembles the tooltailor command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "tooltailor",
		Short: "Customize the tools MCP servers expose",
		Long:  "tooltailor renames, redescribes and filters the tools of configured MCP servers.",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to tooltailor.yaml (default: ./tooltailor.yaml, then ~/.tooltailor/config.yaml)")
	root.PersistentFlags().String("store-path", "", "Customization store location (overrides config and $TOOLTAILOR_STORE_PATH)")
	root.PersistentFlags().String("log-level", "", "Log level: debug | info | warn | error")

	root.Version = version
	root.SetVersionTemplate(fmt.Sprintf("tooltailor version %s\n", version))

	root.AddCommand(NewToolsCmd())
	root.AddCommand(NewOverlayCmd())
	root.AddCommand(NewServeCmd())
	return root
}

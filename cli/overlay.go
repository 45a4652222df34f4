package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/tooltailor/tool"
)

// NewOverlayCmd creates the "overlay" command group.
func NewOverlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overlay",
		Short: "Export and import customizations as YAML overlays",
	}
	cmd.AddCommand(newOverlayExportCmd())
	cmd.AddCommand(newOverlayImportCmd())
	cmd.AddCommand(newOverlayValidateCmd())
	return cmd
}

func newOverlayExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <server>",
		Short: "Write a server's customization as an overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			return withApp(cmd, func(a *app) error {
				overlay, err := a.service.Export(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				data, err := tool.MarshalOverlayYAML(overlay)
				if err != nil {
					return err
				}
				if output == "" || output == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("writing overlay %q: %w", output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote overlay: %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
	return cmd
}

func newOverlayImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Store an overlay as its server's customization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overlay, diags, err := tool.ParseOverlayFile(args[0])
			if err != nil {
				return exitError(exitValidation, "reading overlay: %v", err)
			}
			if (tool.Result{Diagnostics: diags}).HasErrors() {
				printDiagnostics(cmd.ErrOrStderr(), diags)
				return exitError(exitValidation, "overlay %s failed validation", args[0])
			}
			return withApp(cmd, func(a *app) error {
				stored, warnings, err := a.service.Import(cmd.Context(), overlay)
				if err != nil {
					return err
				}
				printDiagnostics(cmd.ErrOrStderr(), warnings)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported overlay for server: %s (revision %s)\n", stored.Server, stored.Revision)
				return nil
			})
		},
	}
}

func newOverlayValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check an overlay file without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, diags, err := tool.ParseOverlayFile(args[0])
			if err != nil {
				return exitError(exitValidation, "reading overlay: %v", err)
			}
			printDiagnostics(cmd.ErrOrStderr(), diags)
			if (tool.Result{Diagnostics: diags}).HasErrors() {
				return exitError(exitValidation, "overlay %s failed validation", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Overlay %s is valid\n", args[0])
			return nil
		},
	}
}

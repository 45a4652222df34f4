package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/tooltailor/override"
	"github.com/petal-labs/tooltailor/tool"
)

// NewToolsCmd creates the "tools" command group.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and customize a server's tools",
	}

	cmd.AddCommand(newToolsServersCmd())
	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsRenameCmd())
	cmd.AddCommand(newToolsDescribeCmd())
	cmd.AddCommand(newToolsResetCmd())
	cmd.AddCommand(newToolsEnableCmd(true))
	cmd.AddCommand(newToolsEnableCmd(false))
	cmd.AddCommand(newToolsDriftCmd())

	return cmd
}

func newToolsServersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List configured servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app) error {
				writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
				fmt.Fprintln(writer, "SERVER\tTOOLS\tTRANSPORT")
				for _, spec := range a.service.Servers() {
					transport := string(spec.Transport.Mode)
					if transport == "" {
						transport = "-"
					}
					fmt.Fprintf(writer, "%s\t%d\t%s\n", spec.Name, len(spec.Tools), transport)
				}
				return writer.Flush()
			})
		},
	}
}

func newToolsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <server>",
		Short: "List a server's tools as clients will see them",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsList,
	}
	cmd.Flags().String("filter", "", "Only show tools matching this query")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

type toolListItem struct {
	override.ResolvedTool
	Enabled bool `json:"enabled"`
}

func runToolsList(cmd *cobra.Command, args []string) error {
	server := strings.TrimSpace(args[0])
	query, _ := cmd.Flags().GetString("filter")
	asJSON, _ := cmd.Flags().GetBool("json")

	return withApp(cmd, func(a *app) error {
		tools, err := a.service.Resolve(cmd.Context(), server)
		if err != nil {
			return err
		}
		tools = tool.FilterTools(tools, query)

		if asJSON {
			items := make([]toolListItem, 0, len(tools))
			for _, t := range tools {
				items = append(items, toolListItem{ResolvedTool: t, Enabled: t.IsInitialEnabled})
			}
			data, err := json.MarshalIndent(items, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(writer, "NAME\tORIGINAL\tENABLED\tDESCRIPTION")
		for _, t := range tools {
			original := "-"
			if t.Renamed() {
				original = t.OriginalName
			}
			fmt.Fprintf(writer, "%s\t%s\t%t\t%s\n", t.DisplayName, original, t.IsInitialEnabled, truncate(t.Description, 60))
		}
		return writer.Flush()
	})
}

func newToolsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <server> <tool> <new-name>",
		Short: "Rename a tool",
		Long:  "Rename a tool. Renaming it back to its original name removes the override.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTool(cmd, args[0], args[1], func(s *override.Session) {
				s.ChangeName(strings.TrimSpace(args[2]))
			})
		},
	}
}

func newToolsDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <server> <tool> <description>",
		Short: "Replace a tool's description",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editTool(cmd, args[0], args[1], func(s *override.Session) {
				s.ChangeDescription(args[2])
			})
		},
	}
}

// editTool opens name in an edit session, lets change adjust the draft,
// saves, and commits when the edit changed anything.
func editTool(cmd *cobra.Command, server, name string, change func(*override.Session)) error {
	server = strings.TrimSpace(server)
	return withApp(cmd, func(a *app) error {
		session, err := a.service.Open(cmd.Context(), server)
		if err != nil {
			return err
		}
		display, err := lookupTool(session, server, name)
		if err != nil {
			return err
		}
		session.OpenTool(display)
		change(session)
		patch, _ := session.Save()
		return commitPatch(cmd, a, server, display, session, patch)
	})
}

func commitPatch(cmd *cobra.Command, a *app, server, display string, session *override.Session, patch override.Patch) error {
	if !patch.Changed() {
		fmt.Fprintf(cmd.OutOrStdout(), "No changes for tool: %s\n", display)
		return nil
	}
	stored, err := a.service.Commit(cmd.Context(), server, session)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated tool: %s (%s, revision %s)\n", display, describePatch(patch), stored.Revision)
	return nil
}

func newToolsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <server> [tool]",
		Short: "Drop customizations for a server or a single tool",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			server := strings.TrimSpace(args[0])
			return withApp(cmd, func(a *app) error {
				if len(args) == 1 {
					if err := a.service.Reset(cmd.Context(), server); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Reset customization for server: %s\n", server)
					return nil
				}
				session, err := a.service.Open(cmd.Context(), server)
				if err != nil {
					return err
				}
				display, err := lookupTool(session, server, args[1])
				if err != nil {
					return err
				}
				patch, _ := session.ResetTool(display)
				return commitPatch(cmd, a, server, display, session, patch)
			})
		},
	}
}

func newToolsEnableCmd(enabled bool) *cobra.Command {
	use, short := "enable", "Enable tools"
	if !enabled {
		use, short = "disable", "Disable tools"
	}
	cmd := &cobra.Command{
		Use:   use + " <server> [tool...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) > 1) {
				return exitError(exitValidation, "name at least one tool or pass --all")
			}
			server := strings.TrimSpace(args[0])
			return withApp(cmd, func(a *app) error {
				session, err := a.service.Open(cmd.Context(), server)
				if err != nil {
					return err
				}
				if all {
					session.SetAllEnabled(enabled)
				}
				for _, name := range args[1:] {
					display, err := lookupTool(session, server, name)
					if err != nil {
						return err
					}
					session.SetEnabled(display, enabled)
				}
				if !session.HasChanges() {
					fmt.Fprintln(cmd.OutOrStdout(), "No changes")
					return nil
				}
				if _, err := a.service.Commit(cmd.Context(), server, session); err != nil {
					return err
				}
				flags := session.EnabledFlags()
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d tool(s) enabled on %s\n", override.CountEnabled(flags), len(flags), server)
				return nil
			})
		},
	}
	cmd.Flags().Bool("all", false, "Apply to every tool")
	return cmd
}

func newToolsDriftCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drift <server>",
		Short: "Compare the configured catalog with the live server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withApp(cmd, func(a *app) error {
				report, err := a.service.Drift(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if asJSON {
					data, err := json.MarshalIndent(report, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return nil
				}
				if !report.HasDrift() {
					fmt.Fprintf(cmd.OutOrStdout(), "No drift for server: %s\n", report.Server)
					return nil
				}
				for _, name := range report.Extra {
					fmt.Fprintf(cmd.OutOrStdout(), "+ %s (live only)\n", name)
				}
				for _, name := range report.Missing {
					fmt.Fprintf(cmd.OutOrStdout(), "- %s (catalog only)\n", name)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("json", false, "Print JSON instead of text")
	return cmd
}

// lookupTool accepts either the displayed or the original name and returns
// the display name.
func lookupTool(session *override.Session, server, name string) (string, error) {
	name = strings.TrimSpace(name)
	tools := session.Tools()
	if t, ok := override.FindTool(tools, name); ok {
		return t.DisplayName, nil
	}
	if t, ok := override.FindCanonical(tools, name); ok {
		return t.DisplayName, nil
	}
	return "", tool.ToolNotFound(server, name)
}

func describePatch(patch override.Patch) string {
	parts := make([]string, 0, 2)
	if !patch.Name.IsKeep() {
		parts = append(parts, "name "+patch.Name.Op().String())
	}
	if !patch.Description.IsKeep() {
		parts = append(parts, "description "+patch.Description.Op().String())
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

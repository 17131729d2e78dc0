package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/skosovsky/glmtools"
	"github.com/skosovsky/glmtools/conversation"
)

func newToolsCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		Long:  "List the registered tools. --json prints the schema exactly as it is sent to the model.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			reg, err := a.registry()
			if err != nil {
				return err
			}
			if asJSON {
				schema, err := conversation.EncodeTools(reg.Schema())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), schema)
				return err
			}
			return printTools(cmd.OutOrStdout(), reg)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tool schema as JSON")
	return cmd
}

func printTools(w io.Writer, reg *glmtools.Registry) error {
	nameStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var b strings.Builder
	for i, def := range reg.Schema() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(nameStyle.Render(def.Name))
		if t, ok := reg.Tool(def.Name); ok {
			if tm, ok := t.(glmtools.ToolMetadata); ok && tm.IsDangerous() {
				b.WriteString(" " + warnStyle.Render("[dangerous]"))
			}
		}
		b.WriteString("\n  " + def.Description + "\n")
		for _, p := range def.Params {
			req := ""
			if p.Required {
				req = ", required"
			}
			fmt.Fprintf(&b, "  - %s %s %s\n", p.Name, dimStyle.Render("("+p.Type+req+")"), p.Description)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datasift-cli/internal/filter"
)

var inspectSrc sourceFlags

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show how a source resolves: columns, kinds, bindings and filter controls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := inspectSrc.open(cmd, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		p := sess.Prepared
		fmt.Fprintf(out, "Source: %s\n", p.Source)
		if p.Sheet != "" {
			fmt.Fprintf(out, "Sheet: %s\n", p.Sheet)
		}
		fmt.Fprintf(out, "Profile: %s\n", p.Profile.Name)
		fmt.Fprintf(out, "Rows: %d\n", p.Dataset.Len())
		if p.Headerless {
			fmt.Fprintln(out, "Header: none detected (positional names assigned)")
		}

		fmt.Fprintln(out, "\nColumns:")
		for _, c := range p.Dataset.Columns {
			line := fmt.Sprintf("- %s (%s)", c.Name, c.Kind)
			if src, ok := p.Binding[c.Name]; ok && src != c.Name {
				line += fmt.Sprintf(" <- %q", src)
			}
			if n := p.Gaps[c.Name]; n > 0 {
				line += fmt.Sprintf(", %d unparsed", n)
			}
			fmt.Fprintln(out, line)
		}
		if len(p.Skipped) > 0 {
			fmt.Fprintf(out, "\nNot derived: %s\n", strings.Join(p.Skipped, ", "))
		}

		fmt.Fprintln(out, "\nFilters:")
		for _, c := range sess.Controls() {
			fmt.Fprintf(out, "- %s: %s\n", c.Column, describeControl(c))
		}
		fmt.Fprintln(out)
		printKPIs(out, sess.KPIs(p.Dataset))
		return nil
	},
}

func describeControl(c filter.Control) string {
	const maxShown = 12
	switch {
	case c.Bounds != nil:
		return fmt.Sprintf("%g..%g", c.Bounds.Low, c.Bounds.High)
	case c.Dates != nil:
		return fmt.Sprintf("%s..%s", c.Dates.From.Format("2006-01-02"), c.Dates.To.Format("2006-01-02"))
	case len(c.Options) > maxShown:
		return fmt.Sprintf("%s, … (%d options)", strings.Join(c.Options[:maxShown], ", "), len(c.Options))
	}
	return strings.Join(c.Options, ", ")
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectSrc.register(inspectCmd.Flags())
}

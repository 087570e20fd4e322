package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/preset"
)

var (
	psFilter  filterFlags
	psProfile string
	psDesc    string
	psGroupBy string
	psMetric  string
	psReducer string
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage saved filter presets",
}

var presetSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save filter flags (and optionally an aggregation) under a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		params, _, err := psFilter.params(nil)
		if err != nil {
			return err
		}
		p, err := preset.New(c.PresetsDir, args[0], psProfile, params)
		if err != nil {
			return err
		}
		if existing, err := preset.Load(c.PresetsDir, args[0]); err == nil {
			p.ID, p.CreatedAt = existing.ID, existing.CreatedAt
		}
		p.Description = psDesc
		if psGroupBy != "" {
			r, err := aggregate.ParseReducer(psReducer)
			if err != nil {
				return err
			}
			p.Aggregate = &aggregate.Spec{GroupBy: psGroupBy, Metric: psMetric, Reducer: r}
		}
		if err := p.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved preset '%s' to %s\n", p.Name, p.Path())
		return nil
	},
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		list, err := preset.List(c.PresetsDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "(no presets)")
			return nil
		}
		for _, p := range list {
			line := "- " + p.Name
			if p.Profile != "" {
				line += fmt.Sprintf(" [%s]", p.Profile)
			}
			if p.Description != "" {
				line += ": " + p.Description
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var presetShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a preset as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		p, err := preset.Load(c.PresetsDir, args[0])
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		if err := preset.Delete(c.PresetsDir, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted preset '%s'\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetCmd)
	presetCmd.AddCommand(presetSaveCmd, presetListCmd, presetShowCmd, presetDeleteCmd)
	psFilter.register(presetSaveCmd.Flags())
	presetSaveCmd.Flags().StringVar(&psProfile, "profile", "", "profile the preset was built for")
	presetSaveCmd.Flags().StringVar(&psDesc, "desc", "", "description shown by preset list")
	presetSaveCmd.Flags().StringVarP(&psGroupBy, "group-by", "g", "", "store an aggregation grouped by this column")
	presetSaveCmd.Flags().StringVarP(&psMetric, "metric", "m", "", "metric column for the stored aggregation")
	presetSaveCmd.Flags().StringVarP(&psReducer, "reducer", "r", "count", "reducer for the stored aggregation: sum|mean|median|count")
}

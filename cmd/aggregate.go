package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/export"
)

var (
	aggSrc     sourceFlags
	aggFilter  filterFlags
	aggGroupBy string
	aggMetric  string
	aggReducer string
	aggTop     int
	aggOut     string
	aggBOM     bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate <file>",
	Short: "Group the filtered rows by a column and reduce a metric (sum|mean|median|count)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := aggSrc.open(cmd, args[0])
		if err != nil {
			return err
		}
		params, saved, err := aggFilter.params(sess.Dataset())
		if err != nil {
			return err
		}
		var spec aggregate.Spec
		switch {
		case aggGroupBy != "":
			r, err := aggregate.ParseReducer(aggReducer)
			if err != nil {
				return err
			}
			spec = aggregate.Spec{GroupBy: aggGroupBy, Metric: aggMetric, Reducer: r}
		case saved != nil && saved.Aggregate != nil:
			spec = *saved.Aggregate
		default:
			return fmt.Errorf("--group-by is required (or use a --preset that stores an aggregation)")
		}
		if spec.Reducer != aggregate.Count && spec.Metric == "" {
			return fmt.Errorf("--metric is required for reducer %s", spec.Reducer)
		}

		view, err := sess.Recompute(params)
		if err != nil {
			return err
		}
		tbl, err := sess.Aggregate(view.Rows, spec, aggTop)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		what := fmt.Sprintf("%s of %s", spec.Reducer, spec.Metric)
		if spec.Reducer == aggregate.Count {
			what = string(aggregate.Count)
		}
		fmt.Fprintf(out, "%s by %s (%d rows, %d groups)\n\n", what, spec.GroupBy, view.Rows.Len(), tbl.Len())
		printTable(out, tbl.Dataset(), 0)

		if aggOut != "" {
			bom := aggBOM
			if !cmd.Flags().Changed("bom") {
				if c, err := config(); err == nil {
					bom = c.ExportBOM
				}
			}
			if err := export.SaveTable(aggOut, tbl, export.Options{BOM: bom, Logger: logger}); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote %d groups to %s\n", tbl.Len(), aggOut)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggSrc.register(aggregateCmd.Flags())
	aggFilter.register(aggregateCmd.Flags())
	aggregateCmd.Flags().StringVarP(&aggGroupBy, "group-by", "g", "", "column to group by")
	aggregateCmd.Flags().StringVarP(&aggMetric, "metric", "m", "", "numeric column to reduce (ignored for count)")
	aggregateCmd.Flags().StringVarP(&aggReducer, "reducer", "r", "count", "reducer: sum|mean|median|count")
	aggregateCmd.Flags().IntVar(&aggTop, "top", 0, "keep only the N groups with the largest values (0 = all)")
	aggregateCmd.Flags().StringVarP(&aggOut, "out", "o", "", "write the grouped table to this CSV file")
	aggregateCmd.Flags().BoolVar(&aggBOM, "bom", false, "prefix the CSV with a UTF-8 byte order mark (default from config)")
}

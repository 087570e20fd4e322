package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/datasift-cli/internal/analysis"
	"github.com/KaramelBytes/datasift-cli/internal/filter"
	"github.com/KaramelBytes/datasift-cli/internal/pipeline"
	"github.com/KaramelBytes/datasift-cli/internal/utils"
)

// reportFlags are the summary options shared by report and analyze-batch.
type reportFlags struct {
	sampleRows int
	groupBy    []string
	corr       bool
	corrGroups bool
	outliers   bool
	outlierThr float64
}

func (f *reportFlags) register(fs *pflag.FlagSet) {
	fs.IntVar(&f.sampleRows, "sample-rows", 5, "number of sample rows to include (0 disables samples)")
	fs.StringSliceVar(&f.groupBy, "group-by", nil, "comma-separated column names to group by (repeatable)")
	fs.BoolVar(&f.corr, "correlations", false, "compute Pearson correlations among numeric columns")
	fs.BoolVar(&f.corrGroups, "corr-per-group", false, "compute correlation pairs within each group (may be slower)")
	fs.BoolVar(&f.outliers, "outliers", true, "compute robust outlier counts (MAD)")
	fs.Float64Var(&f.outlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (MAD-based)")
}

func (f *reportFlags) options() analysis.Options {
	opt := analysis.DefaultOptions()
	opt.SampleRows = f.sampleRows
	opt.GroupBy = f.groupBy
	opt.Correlations = f.corr
	opt.CorrPerGroup = f.corrGroups
	opt.Outliers = f.outliers
	if f.outlierThr > 0 {
		opt.OutlierThreshold = f.outlierThr
	}
	return opt
}

var (
	repSrc    sourceFlags
	repFilter filterFlags
	repOpts   reportFlags
	repOutput string
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Summarize the filtered rows as a Markdown report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := repSrc.open(cmd, args[0])
		if err != nil {
			return err
		}
		params, _, err := repFilter.params(sess.Dataset())
		if err != nil {
			return err
		}
		md, err := renderReport(sess, params, repOpts.options())
		if err != nil {
			return err
		}
		if repOutput != "" {
			if err := utils.SafeWriteFile(repOutput, []byte(md)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote report to %s\n", repOutput)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), md)
		return nil
	},
}

func renderReport(sess *pipeline.Session, params filter.Params, opt analysis.Options) (string, error) {
	view, err := sess.Recompute(params)
	if err != nil {
		return "", err
	}
	return sess.Report(view.Rows, opt).Markdown(), nil
}

func init() {
	rootCmd.AddCommand(reportCmd)
	repSrc.register(reportCmd.Flags())
	repFilter.register(reportCmd.Flags())
	repOpts.register(reportCmd.Flags())
	reportCmd.Flags().StringVarP(&repOutput, "output", "o", "", "optional path to write the report (Markdown)")
}

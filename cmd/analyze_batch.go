package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/datasift-cli/internal/utils"
)

var (
	abSrc    sourceFlags
	abFilter filterFlags
	abOpts   reportFlags
	abOutDir string
	abJobs   int
	abQuiet  bool
)

type batchResult struct {
	path     string
	md       string
	warnings []string
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Summarize multiple CSV/TSV/XLSX files in parallel, optionally writing one report per file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		g, err := abSrc.options(cmd.Flags())
		if err != nil {
			return err
		}
		opt := abOpts.options()
		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

		results := make([]batchResult, len(files))
		var done atomic.Int32
		eg := new(errgroup.Group)
		if abJobs > 0 {
			eg.SetLimit(abJobs)
		}
		for i, path := range files {
			i, path := i, path
			eg.Go(func() error {
				sess, err := prepareFile(g, path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				params, _, err := abFilter.params(sess.Dataset())
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				md, err := renderReport(sess, params, opt)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results[i] = batchResult{path: path, md: md, warnings: sess.Prepared.Warnings}
				n := done.Add(1)
				logger.Debug("batch file summarized", "path", path, "done", n, "total", len(files))
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		total := len(files)
		for i, res := range results {
			if !abQuiet {
				fmt.Fprintf(out, "[%d/%d] Processed %s\n", i+1, total, filepath.Base(res.path))
			}
			for _, w := range res.warnings {
				fmt.Fprintf(errOut, "⚠ Warning: %s: %s\n", filepath.Base(res.path), w)
			}
			if abOutDir == "" {
				fmt.Fprintln(out, res.md)
				continue
			}
			outFile, renamed, err := summaryPath(abOutDir, res.path, abSrc.sheetName)
			if err != nil {
				return err
			}
			if renamed && !abQuiet {
				fmt.Fprintf(out, "⚠ Detected existing summary, writing to %s to avoid overwrite.\n", filepath.Base(outFile))
			}
			if err := utils.SafeWriteFile(outFile, []byte(res.md)); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			if !abQuiet {
				fmt.Fprintf(out, "✓ Wrote %s\n", outFile)
			}
		}
		return nil
	},
}

func summaryBase(path, sheet string) string {
	base := filepath.Base(path)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	if sheet == "" {
		return safe
	}
	s := strings.ToLower(strings.TrimSpace(sheet))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' {
			b.WriteRune('-')
		}
	}
	ss := strings.Trim(b.String(), "-")
	if ss == "" {
		ss = "sheet"
	}
	return safe + "__sheet-" + ss
}

// summaryPath picks <base>.summary.md in dir, or <base>__N.summary.md when taken.
func summaryPath(dir, path, sheet string) (string, bool, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return "", false, err
	}
	base := summaryBase(path, sheet)
	outFile := filepath.Join(dir, base+".summary.md")
	if _, err := os.Stat(outFile); os.IsNotExist(err) {
		return outFile, false, nil
	}
	for idx := 2; ; idx++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s__%d.summary.md", base, idx))
		if _, err := os.Stat(cand); os.IsNotExist(err) {
			return cand, true, nil
		}
	}
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abSrc.register(analyzeBatchCmd.Flags())
	abFilter.register(analyzeBatchCmd.Flags())
	abOpts.register(analyzeBatchCmd.Flags())
	analyzeBatchCmd.Flags().StringVar(&abOutDir, "out-dir", "", "write each report to <dir>/<name>.summary.md instead of stdout")
	analyzeBatchCmd.Flags().IntVarP(&abJobs, "jobs", "j", 4, "files summarized in parallel (0 = unlimited)")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress and non-essential output")
}

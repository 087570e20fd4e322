package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/datasift-cli/internal/export"
	"github.com/KaramelBytes/datasift-cli/internal/preset"
)

var (
	fltSrc        sourceFlags
	fltFilter     filterFlags
	fltLimit      int
	fltAllColumns bool
	fltDisplayOut bool
	fltOut        string
	fltBOM        bool
	fltSavePreset string
	fltDesc       string
)

var filterCmd = &cobra.Command{
	Use:   "filter <file>",
	Short: "Filter a dataset and print KPIs and matching rows, optionally exporting CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := fltSrc.open(cmd, args[0])
		if err != nil {
			return err
		}
		params, _, err := fltFilter.params(sess.Dataset())
		if err != nil {
			return err
		}
		view, err := sess.Recompute(params)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printKPIs(out, view.KPIs)
		fmt.Fprintln(out)

		shown := view.Rows
		if !fltAllColumns {
			shown = sess.Display(shown)
		}
		if view.Empty() {
			fmt.Fprintln(out, "(no rows match the current filters)")
		} else {
			printTable(out, shown, fltLimit)
		}

		if fltOut != "" {
			bom := fltBOM
			if !cmd.Flags().Changed("bom") {
				if c, err := config(); err == nil {
					bom = c.ExportBOM
				}
			}
			rows := view.Rows
			if fltDisplayOut {
				rows = sess.Display(rows)
			}
			if err := export.SaveCSV(fltOut, rows, export.Options{BOM: bom, Logger: logger}); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote %d rows to %s\n", rows.Len(), fltOut)
		}
		if fltSavePreset != "" {
			c, err := config()
			if err != nil {
				return err
			}
			p, err := preset.New(c.PresetsDir, fltSavePreset, sess.Prepared.Profile.Name, params)
			if err != nil {
				return err
			}
			p.Description = fltDesc
			if err := p.Save(); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Saved preset '%s'\n", p.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
	fltSrc.register(filterCmd.Flags())
	fltFilter.register(filterCmd.Flags())
	filterCmd.Flags().IntVarP(&fltLimit, "limit", "n", 20, "rows to print (0 = all)")
	filterCmd.Flags().BoolVar(&fltAllColumns, "all-columns", false, "show every column instead of the profile's display columns")
	filterCmd.Flags().StringVarP(&fltOut, "out", "o", "", "write the filtered rows (every column) to this CSV file")
	filterCmd.Flags().BoolVar(&fltDisplayOut, "display-columns", false, "export only the profile's display columns")
	filterCmd.Flags().BoolVar(&fltBOM, "bom", false, "prefix the CSV with a UTF-8 byte order mark (default from config)")
	filterCmd.Flags().StringVar(&fltSavePreset, "save-preset", "", "save the effective filters as a named preset")
	filterCmd.Flags().StringVar(&fltDesc, "desc", "", "description for --save-preset")
}

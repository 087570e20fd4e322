package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/datasift-cli/internal/config"
	"github.com/KaramelBytes/datasift-cli/internal/derive"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set DataSift configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "profile: %s\n", c.Profile)
		if c.Delimiter != "" {
			fmt.Fprintf(out, "delimiter: %q\n", c.Delimiter)
		}
		if c.DecimalSeparator != "" {
			fmt.Fprintf(out, "decimal_separator: %q\n", c.DecimalSeparator)
		}
		if c.ThousandsSeparator != "" {
			fmt.Fprintf(out, "thousands_separator: %q\n", c.ThousandsSeparator)
		}
		fmt.Fprintf(out, "max_rows: %d\n", c.MaxRows)
		if c.SheetName != "" {
			fmt.Fprintf(out, "sheet_name: %s\n", c.SheetName)
		}
		if c.SheetIndex > 0 {
			fmt.Fprintf(out, "sheet_index: %d\n", c.SheetIndex)
		}
		fmt.Fprintf(out, "has_header: %s\n", c.HasHeader)
		if c.AliasFile != "" {
			fmt.Fprintf(out, "alias_file: %s\n", c.AliasFile)
		}
		fmt.Fprintf(out, "band_thresholds: %s\n", formatBands(c.Bands()))
		fmt.Fprintf(out, "presets_dir: %s\n", c.PresetsDir)
		fmt.Fprintf(out, "export_bom: %t\n", c.ExportBOM)
		fmt.Fprintf(out, "top_n: %d\n", c.TopN)
		fmt.Fprintf(out, "histogram_bins: %d\n", c.HistogramBins)
		fmt.Fprintf(out, "server_addr: %s\n", c.ServerAddr)
		fmt.Fprintf(out, "server_rate_limit: %.1f\n", c.ServerRateLimit)
		fmt.Fprintf(out, "server_rate_burst: %d\n", c.ServerRateBurst)
		fmt.Fprintf(out, "max_upload_mb: %d\n", c.MaxUploadMB)
		fmt.Fprintf(out, "cache_size: %d\n", c.CacheSize)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", c.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := config()
		if err != nil {
			return err
		}
		next := *c
		if err := setKey(&next, args[0], args[1]); err != nil {
			return err
		}
		if err := next.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&next, cfgFile); err != nil {
			return err
		}
		*c = next
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return 0, fmt.Errorf("invalid non-negative int for %s: %v", key, val)
		}
		return i, nil
	}
	var err error
	switch key {
	case "profile":
		c.Profile = strings.ToLower(val)
	case "delimiter":
		c.Delimiter = val
	case "decimal_separator":
		c.DecimalSeparator = val
	case "thousands_separator":
		c.ThousandsSeparator = val
	case "max_rows":
		c.MaxRows, err = atoi()
	case "sheet_name":
		c.SheetName = val
	case "sheet_index":
		c.SheetIndex, err = atoi()
	case "has_header":
		c.HasHeader = strings.ToLower(val)
	case "alias_file":
		c.AliasFile = val
	case "band_thresholds":
		c.BandThresholds, err = parseBands(val)
		if err == nil && c.BandLowestLabel == "" {
			c.BandLowestLabel = derive.DefaultBands().Lowest
		}
	case "band_lowest_label":
		c.BandLowestLabel = val
	case "presets_dir":
		c.PresetsDir = val
	case "export_bom":
		c.ExportBOM, err = strconv.ParseBool(val)
	case "top_n":
		c.TopN, err = atoi()
	case "histogram_bins":
		c.HistogramBins, err = atoi()
	case "server_addr":
		c.ServerAddr = val
	case "server_rate_limit":
		c.ServerRateLimit, err = strconv.ParseFloat(val, 64)
	case "server_rate_burst":
		c.ServerRateBurst, err = atoi()
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "cache_size":
		c.CacheSize, err = atoi()
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

// parseBands reads "3.7=Excellent,3.0=Good,2.0=Average".
func parseBands(s string) ([]derive.Band, error) {
	var out []derive.Band
	for _, part := range strings.Split(s, ",") {
		minStr, label, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("band %q: want min=label", part)
		}
		threshold, err := strconv.ParseFloat(strings.TrimSpace(minStr), 64)
		if err != nil {
			return nil, fmt.Errorf("band %q: %w", part, err)
		}
		out = append(out, derive.Band{Min: threshold, Label: strings.TrimSpace(label)})
	}
	return out, nil
}

func formatBands(t derive.BandTable) string {
	parts := make([]string, 0, len(t.Bands)+1)
	for _, b := range t.Bands {
		parts = append(parts, fmt.Sprintf("%g=%s", b.Min, b.Label))
	}
	parts = append(parts, "else="+t.Lowest)
	return strings.Join(parts, ", ")
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

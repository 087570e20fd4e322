// Package export writes datasets and aggregation tables as CSV.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/datasift-cli/internal/aggregate"
	"github.com/KaramelBytes/datasift-cli/internal/dataset"
	"github.com/KaramelBytes/datasift-cli/internal/utils"
)

// Default file names.
const (
	AggregateFile = "aggregate.csv"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Options configures CSV output.
type Options struct {
	// BOM prefixes the output with a UTF-8 byte order mark for Excel.
	BOM bool
	// Logger receives a debug line per saved file; nil disables logging.
	Logger *slog.Logger
}

// WriteCSV writes a header row then every row of ds, comma-separated, without an index
// column. Missing cells are written empty.
func WriteCSV(w io.Writer, ds *dataset.Dataset, opt Options) error {
	if opt.BOM {
		if _, err := w.Write(bom); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(ds.Columns))
	for i, row := range ds.Rows {
		for j, v := range row {
			rec[j] = v.String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes an aggregation result as a two-column CSV.
func WriteTable(w io.Writer, tbl *aggregate.Table, opt Options) error {
	return WriteCSV(w, tbl.Dataset(), opt)
}

// Bytes renders ds as CSV in memory.
func Bytes(ds *dataset.Dataset, opt Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds, opt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveCSV writes ds to path atomically, creating parent directories.
func SaveCSV(path string, ds *dataset.Dataset, opt Options) error {
	b, err := Bytes(ds, opt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return err
	}
	if opt.Logger == nil {
		return nil
	}
	opt.Logger.Debug("wrote CSV file",
		slog.String("path", path),
		slog.Int("rows", ds.Len()),
		slog.Int("columns", len(ds.Columns)))
	return nil
}

// SaveTable writes an aggregation result to path.
func SaveTable(path string, tbl *aggregate.Table, opt Options) error {
	return SaveCSV(path, tbl.Dataset(), opt)
}

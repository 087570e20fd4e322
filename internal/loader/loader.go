// Package loader reads raw tables from delimited text and spreadsheet sources.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source reads one family of tabular formats.
type Source interface {
	CanLoad(filename string) bool
	Load(name string, content []byte, opt Options) (*RawTable, error)
}

var registry []Source

// Register adds a source implementation to the registry.
func Register(s Source) {
	registry = append(registry, s)
}

func init() {
	Register(csvSource{})
	Register(xlsxSource{})
}

// ErrUnsupported indicates a source format is not supported.
var ErrUnsupported = errors.New("unsupported source format")

// UnsupportedSourceError names the rejected source. It matches ErrUnsupported with errors.Is.
type UnsupportedSourceError struct {
	Name string
	Ext  string
}

func (e *UnsupportedSourceError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported source %q: no file extension (want .csv, .tsv, .txt or .xlsx)", e.Name)
	}
	return fmt.Sprintf("unsupported source %q: %s files are not supported (want .csv, .tsv, .txt or .xlsx)", e.Name, e.Ext)
}

func (e *UnsupportedSourceError) Is(target error) bool { return target == ErrUnsupported }

// Options controls how a source is read.
type Options struct {
	// Delimiter for delimited text. If 0, picked from the extension and first line.
	Delimiter rune
	// SheetName selects a worksheet by name; it wins over SheetIndex.
	SheetName string
	// SheetIndex selects a worksheet by 1-based position; 0 means the first sheet.
	SheetIndex int
	// MaxRows limits data rows kept after the first row; 0 means unlimited.
	MaxRows int
}

// RawTable is an untyped grid of trimmed cells. The first record may be a header or data;
// deciding that is left to the caller.
type RawTable struct {
	Name    string
	Sheet   string
	Records [][]string
	// Total counts every record in the source, including ones dropped by MaxRows.
	Total int
}

// Truncated reports whether MaxRows dropped records.
func (t *RawTable) Truncated() bool { return t.Total > len(t.Records) }

// Width is the widest record's cell count.
func (t *RawTable) Width() int {
	w := 0
	for _, r := range t.Records {
		w = max(w, len(r))
	}
	return w
}

// Supported reports whether some registered source accepts filename.
func Supported(filename string) bool {
	return lookup(filename) != nil
}

func lookup(filename string) Source {
	for _, s := range registry {
		if s.CanLoad(filename) {
			return s
		}
	}
	return nil
}

// Load selects a source from name's extension and reads content.
func Load(name string, content []byte, opt Options) (*RawTable, error) {
	s := lookup(name)
	if s == nil {
		return nil, &UnsupportedSourceError{Name: filepath.Base(name), Ext: strings.ToLower(filepath.Ext(name))}
	}
	t, err := s.Load(filepath.Base(name), content, opt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile reads path from disk and loads it.
func LoadFile(path string, opt Options) (*RawTable, error) {
	if !Supported(path) {
		return nil, &UnsupportedSourceError{Name: filepath.Base(path), Ext: strings.ToLower(filepath.Ext(path))}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Load(path, data, opt)
}

func keep(opt Options, total int) bool {
	// the first record is always kept since it may be the header
	return opt.MaxRows <= 0 || total <= opt.MaxRows+1
}

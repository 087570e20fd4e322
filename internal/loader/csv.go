package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type csvSource struct{}

func (csvSource) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv") || strings.HasSuffix(name, ".txt")
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (csvSource) Load(name string, content []byte, opt Options) (*RawTable, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(name, content)
	}
	r := csv.NewReader(bytes.NewReader(content))
	r.ReuseRecord = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	r.Comma = delim

	t := &RawTable{Name: name}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", t.Total+1, err)
		}
		t.Total++
		if !keep(opt, t.Total) {
			continue
		}
		row := make([]string, len(rec))
		for i, v := range rec {
			row[i] = strings.TrimSpace(v)
		}
		t.Records = append(t.Records, row)
	}
	return t, nil
}

// sniffDelimiter uses the extension, then the most frequent of ',', ';' and tab on the
// first line. Ties and lines with none of them fall back to comma.
func sniffDelimiter(name string, content []byte) rune {
	if strings.HasSuffix(strings.ToLower(name), ".tsv") {
		return '\t'
	}
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	best, bestN := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

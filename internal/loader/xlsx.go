package loader

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

type xlsxSource struct{}

func (xlsxSource) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xlsm")
}

// Load reads one worksheet. Cells are read as their formatted display strings.
func (xlsxSource) Load(name string, content []byte, opt Options) (*RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opt)
	if err != nil {
		return nil, err
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	t := &RawTable{Name: name, Sheet: sheet}
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("read row %d of sheet %q: %w", t.Total+1, sheet, err)
		}
		if blank(cols) {
			continue
		}
		t.Total++
		if !keep(opt, t.Total) {
			continue
		}
		row := make([]string, len(cols))
		for i, v := range cols {
			row[i] = strings.TrimSpace(v)
		}
		t.Records = append(t.Records, row)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return t, nil
}

func pickSheet(sheets []string, opt Options) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if opt.SheetName != "" {
		for _, s := range sheets {
			if strings.EqualFold(s, opt.SheetName) {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", opt.SheetName, strings.Join(sheets, ", "))
	}
	if opt.SheetIndex > 0 {
		if opt.SheetIndex > len(sheets) {
			return "", fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", opt.SheetIndex, len(sheets))
		}
		return sheets[opt.SheetIndex-1], nil
	}
	return sheets[0], nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

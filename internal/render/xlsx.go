package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XlsxEngine renders spreadsheets by substituting tokens in every string cell
// of every sheet.
type XlsxEngine struct{}

func (XlsxEngine) Render(template []byte, values map[string]string) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(template))
	if err != nil {
		return nil, &RenderError{Message: fmt.Sprintf("not an xlsx workbook: %v", err)}
	}
	defer f.Close()

	lookup := valuesLookup(values, nil)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for r, row := range rows {
			for c, cell := range row {
				if !strings.ContainsAny(cell, "{}") {
					continue
				}
				out, err := substitute(cell, false, lookup)
				if err != nil {
					axis, _ := excelize.CoordinatesToCellName(c+1, r+1)
					if re, ok := err.(*RenderError); ok {
						re.Message = fmt.Sprintf("%s!%s: %s", sheet, axis, re.Message)
					}
					return nil, err
				}
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, axis, out); err != nil {
					return nil, fmt.Errorf("set %s!%s: %w", sheet, axis, err)
				}
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

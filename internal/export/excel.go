// Package export renders a supplier's view of a BOQ as a spreadsheet.
package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/AnnixInvestments/annix-sub017/internal/models"
)

const maxSheetName = 31

var (
	columns = []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	headers = []string{"#", "Description", "Qty", "Unit", "Unit Weight (kg)", "Total Weight (kg)", "Unit Price", "Line Total"}
	widths  = []float64{6, 48, 10, 8, 16, 16, 14, 16}
)

// Workbook builds an xlsx workbook with one sheet per section. Unit prices are filled
// from quote when one has been saved.
func Workbook(boq *models.Boq, sections []models.BoqSection, quote *models.QuotePayload) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF", Size: 11},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F3A5F"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create header style")
	}
	rowStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Size: 10},
		Border: thinBorders(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create row style")
	}
	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, errors.Wrap(err, "create title style")
	}

	defaultSheet := f.GetSheetName(0)
	if len(sections) == 0 {
		if err := f.SetSheetName(defaultSheet, "BOQ"); err != nil {
			return nil, errors.Wrap(err, "set sheet name")
		}
		f.SetCellValue("BOQ", "A1", sanitizeExcelCell(boqHeading(boq)))
		f.SetCellValue("BOQ", "A3", "No sections are available to this supplier.")
	}

	for i, section := range sections {
		name := sheetName(section.SectionTitle, section.SectionType)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, errors.Wrap(err, "set sheet name")
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, errors.Wrapf(err, "create sheet %s", name)
		}

		if err := writeSection(f, name, boq, section, prices(quote, section.SectionType), headerStyle, rowStyle, titleStyle); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	return buf.Bytes(), nil
}

// FileName returns the download name of a BOQ workbook
func FileName(boq *models.Boq) string {
	number := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '-'
		}
		return r
	}, boq.BoqNumber)
	if number == "" {
		number = boq.ID.String()
	}
	return fmt.Sprintf("BOQ-%s.xlsx", number)
}

func writeSection(f *excelize.File, sheet string, boq *models.Boq, section models.BoqSection, unitPrices map[int]decimal.Decimal, headerStyle, rowStyle, titleStyle int) error {
	for i, col := range columns {
		if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
			return errors.Wrapf(err, "set col width %s", col)
		}
	}

	f.SetCellValue(sheet, "A1", sanitizeExcelCell(boqHeading(boq)))
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	f.SetCellValue(sheet, "A2", sanitizeExcelCell(section.SectionTitle))

	for i, h := range headers {
		f.SetCellValue(sheet, columns[i]+"4", h)
	}
	f.SetCellStyle(sheet, "A4", columns[len(columns)-1]+"4", headerStyle)

	row := 5
	total := decimal.Zero
	for idx, item := range section.Items.Data() {
		r := fmt.Sprint(row)
		f.SetCellValue(sheet, "A"+r, item.LineNumber)
		f.SetCellValue(sheet, "B"+r, sanitizeExcelCell(item.Description))
		f.SetCellValue(sheet, "C"+r, item.Quantity.InexactFloat64())
		f.SetCellValue(sheet, "D"+r, sanitizeExcelCell(item.Unit))
		f.SetCellValue(sheet, "E"+r, item.UnitWeightKg.InexactFloat64())
		f.SetCellValue(sheet, "F"+r, item.TotalWeightKg.InexactFloat64())
		if price, ok := unitPrices[idx]; ok {
			line := price.Mul(item.Quantity).Round(2)
			total = total.Add(line)
			f.SetCellValue(sheet, "G"+r, price.InexactFloat64())
			f.SetCellValue(sheet, "H"+r, line.InexactFloat64())
		}
		f.SetCellStyle(sheet, "A"+r, columns[len(columns)-1]+r, rowStyle)
		row++
	}

	row++
	r := fmt.Sprint(row)
	f.SetCellValue(sheet, "E"+r, "Total weight:")
	f.SetCellValue(sheet, "F"+r, section.TotalWeightKg.InexactFloat64())
	if len(unitPrices) > 0 {
		f.SetCellValue(sheet, "G"+r, "Total:")
		f.SetCellValue(sheet, "H"+r, total.InexactFloat64())
	}
	return nil
}

func prices(quote *models.QuotePayload, sectionType string) map[int]decimal.Decimal {
	if quote == nil {
		return nil
	}
	return quote.UnitPrices[sectionType]
}

func boqHeading(boq *models.Boq) string {
	if boq.Title == "" {
		return boq.BoqNumber
	}
	return boq.BoqNumber + " - " + boq.Title
}

// sheetName strips the characters Excel rejects and truncates to the sheet name limit
func sheetName(title, fallback string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	if name == "" {
		name = fallback
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

// sanitizeExcelCell prefixes values that a spreadsheet would evaluate as a formula
func sanitizeExcelCell(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}

func thinBorders() []excelize.Border {
	sides := []string{"left", "top", "bottom", "right"}
	borders := make([]excelize.Border, len(sides))
	for i, side := range sides {
		borders[i] = excelize.Border{Type: side, Color: "#000000", Style: 1}
	}
	return borders
}

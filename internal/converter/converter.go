package converter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/nconklindev/oct/internal/types"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// MaxColumnWidth is the widest column excelize accepts.
const MaxColumnWidth = 255

// Func is the shape shared by every conversion. Progress is reported on
// progressChan as the fraction of rows written; sends never block.
type Func func(inputFile, outputFile string, progressChan chan<- float64) (*types.ConversionResult, error)

func progressReporter(progressChan chan<- float64, totalRows int) func(int) {
	return func(current int) {
		if progressChan == nil || totalRows <= 0 {
			return
		}
		select {
		case progressChan <- float64(current) / float64(totalRows):
		default:
		}
	}
}

func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return reader
}

// countCSVRows runs the first pass over a CSV file and rewinds it.
func countCSVRows(file *os.File) (int, error) {
	reader := newCSVReader(file)
	reader.ReuseRecord = true

	total := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		total++
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return total, nil
}

// CSVToTSV rewrites a comma-delimited file as tab-delimited, field for field.
func CSVToTSV(inputFile, outputFile string, progressChan chan<- float64) (*types.ConversionResult, error) {
	inFile, err := os.Open(inputFile)
	if err != nil {
		return nil, err
	}
	defer inFile.Close()

	totalRows, err := countCSVRows(inFile)
	if err != nil {
		return nil, err
	}
	reportProgress := progressReporter(progressChan, totalRows)

	outFile, err := os.Create(outputFile)
	if err != nil {
		return nil, err
	}
	defer outFile.Close()

	reader := newCSVReader(inFile)
	writer := csv.NewWriter(outFile)
	writer.Comma = '\t'

	rowsProcessed := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowsProcessed+1, err)
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
		rowsProcessed++
		reportProgress(rowsProcessed)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	if err := outFile.Close(); err != nil {
		return nil, err
	}

	return &types.ConversionResult{
		InputFile:     inputFile,
		OutputFile:    outputFile,
		RowsProcessed: rowsProcessed,
	}, nil
}

// CSVToXLSX writes every CSV field into the first sheet of a new workbook and
// sizes each column to the longest value seen in it.
func CSVToXLSX(inputFile, outputFile string, progressChan chan<- float64) (*types.ConversionResult, error) {
	inFile, err := os.Open(inputFile)
	if err != nil {
		return nil, err
	}
	defer inFile.Close()

	totalRows, err := countCSVRows(inFile)
	if err != nil {
		return nil, err
	}
	reportProgress := progressReporter(progressChan, totalRows)

	f := excelize.NewFile()
	defer f.Close()
	sheetName := f.GetSheetName(f.GetActiveSheetIndex())

	reader := newCSVReader(inFile)
	var widths []int

	rowIdx := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rowIdx+1, err)
		}
		rowIdx++

		for colIdx, value := range record {
			cellName, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellStr(sheetName, cellName, value); err != nil {
				return nil, err
			}

			if colIdx >= len(widths) {
				widths = append(widths, make([]int, colIdx-len(widths)+1)...)
			}
			if n := utf8.RuneCountInString(value); n > widths[colIdx] {
				widths[colIdx] = n
			}
		}
		reportProgress(rowIdx)
	}

	for colIdx, width := range widths {
		if width == 0 {
			continue
		}
		if width > MaxColumnWidth {
			width = MaxColumnWidth
		}
		colName, err := excelize.ColumnNumberToName(colIdx + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(sheetName, colName, colName, float64(width)); err != nil {
			return nil, err
		}
	}

	if err := f.SaveAs(outputFile); err != nil {
		return nil, err
	}

	return &types.ConversionResult{
		InputFile:     inputFile,
		OutputFile:    outputFile,
		RowsProcessed: rowIdx,
	}, nil
}

// ExcelToCSV writes the active sheet of an .xlsx workbook, or the first sheet
// of a legacy .xls workbook, as comma-delimited rows.
func ExcelToCSV(inputFile, outputFile string, progressChan chan<- float64) (*types.ConversionResult, error) {
	var sheet sheetReader
	switch strings.ToLower(filepath.Ext(inputFile)) {
	case ".xlsx":
		sheet = xlsxSheet{path: inputFile}
	case ".xls":
		sheet = xlsSheet{path: inputFile}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(inputFile))
	}

	outFile, err := os.Create(outputFile)
	if err != nil {
		return nil, err
	}
	defer outFile.Close()

	writer := csv.NewWriter(outFile)
	rowsProcessed, err := sheet.each(func(totalRows int) func([]string) error {
		reportProgress := progressReporter(progressChan, totalRows)
		current := 0
		return func(row []string) error {
			if err := writer.Write(row); err != nil {
				return err
			}
			current++
			reportProgress(current)
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	if err := outFile.Close(); err != nil {
		return nil, err
	}

	return &types.ConversionResult{
		InputFile:     inputFile,
		OutputFile:    outputFile,
		RowsProcessed: rowsProcessed,
	}, nil
}

// sheetReader streams a worksheet top to bottom. start receives the row
// count before any row is delivered; every row is padded to the sheet width.
type sheetReader interface {
	each(start func(totalRows int) func(row []string) error) (int, error)
}

type xlsxSheet struct {
	path string
}

func (s xlsxSheet) each(start func(int) func([]string) error) (int, error) {
	// Stored values are exported as they are, without the cell's number format.
	f, err := excelize.OpenFile(s.path, excelize.Options{RawCellValue: true})
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sheetName := f.GetSheetName(f.GetActiveSheetIndex())

	totalRows, width, err := measureXLSX(f, sheetName)
	if err != nil {
		return 0, err
	}
	emit := start(totalRows)

	rows, err := f.Rows(sheetName)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	processed := 0
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return processed, err
		}
		if err := emit(padRow(cols, width)); err != nil {
			return processed, err
		}
		processed++
	}
	return processed, rows.Error()
}

// measureXLSX is the counting pass: number of rows and widest row.
func measureXLSX(f *excelize.File, sheetName string) (int, int, error) {
	rows, err := f.Rows(sheetName)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	total, width := 0, 0
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return 0, 0, err
		}
		total++
		if len(cols) > width {
			width = len(cols)
		}
	}
	return total, width, rows.Error()
}

type xlsSheet struct {
	path string
}

func (s xlsSheet) each(start func(int) func([]string) error) (int, error) {
	wb, err := xls.Open(s.path, "utf-8")
	if err != nil {
		return 0, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return 0, fmt.Errorf("workbook has no sheets")
	}

	totalRows := int(sheet.MaxRow) + 1
	width := 0
	for i := 0; i < totalRows; i++ {
		if row := sheet.Row(i); row != nil && row.LastCol() > width {
			width = row.LastCol()
		}
	}
	emit := start(totalRows)

	for i := 0; i < totalRows; i++ {
		cols := make([]string, width)
		if row := sheet.Row(i); row != nil {
			for c := row.FirstCol(); c < row.LastCol() && c < width; c++ {
				cols[c] = row.Col(c)
			}
		}
		if err := emit(cols); err != nil {
			return i, err
		}
	}
	return totalRows, nil
}

func padRow(cols []string, width int) []string {
	if len(cols) >= width {
		return cols
	}
	padded := make([]string, width)
	copy(padded, cols)
	return padded
}

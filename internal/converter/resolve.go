package converter

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nconklindev/oct/internal/types"
)

var ErrUnsupportedFormat = errors.New("unsupported file format or operation")

const (
	NameCSVToTSV   = "csv_to_tsv"
	NameCSVToXLSX  = "csv_to_xlsx"
	NameExcelToCSV = "excel_to_csv"
)

// Conversion is a resolved conversion function and its name.
type Conversion struct {
	Name string
	Run  Func
}

// Resolve picks the conversion for an input file extension and kind.
func Resolve(inputFile string, kind types.ConversionKind) (Conversion, error) {
	ext := strings.ToLower(filepath.Ext(inputFile))

	switch {
	case ext == ".csv" && kind == types.ToTSV:
		return Conversion{Name: NameCSVToTSV, Run: CSVToTSV}, nil
	case ext == ".csv" && kind == types.ToXLSX:
		return Conversion{Name: NameCSVToXLSX, Run: CSVToXLSX}, nil
	case (ext == ".xlsx" || ext == ".xls") && kind == types.ExcelToCSV:
		return Conversion{Name: NameExcelToCSV, Run: ExcelToCSV}, nil
	}

	return Conversion{}, fmt.Errorf("%w: %s with %s", ErrUnsupportedFormat, displayExt(ext), kind)
}

// OutputName is the input base name with its extension replaced by the kind's.
func OutputName(inputFile string, kind types.ConversionKind) string {
	base := filepath.Base(inputFile)
	return strings.TrimSuffix(base, filepath.Ext(base)) + kind.Extension()
}

func displayExt(ext string) string {
	if ext == "" {
		return "file without extension"
	}
	return ext
}

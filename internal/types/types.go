package types

// ConversionKind selects which conversion runs and the output extension.
type ConversionKind int

const (
	ToTSV ConversionKind = iota
	ToXLSX
	ExcelToCSV
)

// Kinds lists the conversion kinds in the order the wizard offers them.
var Kinds = []ConversionKind{ToTSV, ToXLSX, ExcelToCSV}

// Extension returns the output file extension for the kind.
func (k ConversionKind) Extension() string {
	switch k {
	case ToTSV:
		return ".tsv"
	case ToXLSX:
		return ".xlsx"
	case ExcelToCSV:
		return ".csv"
	}
	return ""
}

func (k ConversionKind) Label() string {
	switch k {
	case ToTSV:
		return "Convert to TSV"
	case ToXLSX:
		return "Convert to XLSX (Excel)"
	case ExcelToCSV:
		return "Convert Excel to CSV"
	}
	return "Unknown"
}

func (k ConversionKind) String() string {
	switch k {
	case ToTSV:
		return "to_tsv"
	case ToXLSX:
		return "to_xlsx"
	case ExcelToCSV:
		return "excel_to_csv"
	}
	return "unknown"
}

// Session holds the user's selections for the current wizard pass.
type Session struct {
	InputFile  string
	OutputFile string
	Kind       ConversionKind
}

func (s *Session) Clear() {
	*s = Session{}
}

type Severity int

const (
	SeverityInfo Severity = iota
	SeveritySuccess
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unknown"
}

type EventType int

const (
	EventStatus EventType = iota
	EventProgress
)

// Event is emitted by the worker during a conversion run. Status events
// carry Message and Severity, progress events carry Percent.
type Event struct {
	Type     EventType
	Message  string
	Severity Severity
	Percent  int
}

func StatusEvent(severity Severity, message string) Event {
	return Event{Type: EventStatus, Severity: severity, Message: message}
}

func ProgressEvent(percent int) Event {
	return Event{Type: EventProgress, Percent: percent}
}

type ConversionResult struct {
	InputFile     string
	OutputFile    string
	RowsProcessed int
}

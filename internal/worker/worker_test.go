package worker

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nconklindev/oct/internal/converter"
	"github.com/nconklindev/oct/internal/types"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func drain(t *testing.T, events <-chan types.Event) []types.Event {
	t.Helper()
	var got []types.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, e)
		case <-timeout:
			t.Fatal("timed out waiting for the run to finish")
			return got
		}
	}
}

func statuses(events []types.Event) []types.Event {
	var out []types.Event
	for _, e := range events {
		if e.Type == types.EventStatus {
			out = append(out, e)
		}
	}
	return out
}

func progress(events []types.Event) []int {
	var out []int
	for _, e := range events {
		if e.Type == types.EventProgress {
			out = append(out, e.Percent)
		}
	}
	return out
}

func mustResolve(t *testing.T, input string, kind types.ConversionKind) converter.Conversion {
	t.Helper()
	c, err := converter.Resolve(input, kind)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRun_CSVToTSVScenario(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "data.csv")
	outDir := filepath.Join(tmpDir, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	outputFile := filepath.Join(outDir, converter.OutputName(inputFile, types.ToTSV))

	records := [][]string{
		{"id", "name", "qty"},
		{"1", "bolt", "40"},
		{"2", "nut", "120"},
		{"3", "washer", "75"},
		{"4", "screw", "300"},
	}
	f, err := os.Create(inputFile)
	if err != nil {
		t.Fatal(err)
	}
	csv.NewWriter(f).WriteAll(records)
	f.Close()

	w := New(0)
	events, err := w.Start(Job{
		InputFile:  inputFile,
		OutputFile: outputFile,
		Kind:       types.ToTSV,
		Conversion: mustResolve(t, inputFile, types.ToTSV),
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	got := drain(t, events)

	if outputFile != filepath.Join(outDir, "data.tsv") {
		t.Errorf("Output file = %s", outputFile)
	}
	out, err := os.Open(outputFile)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	r := csv.NewReader(out)
	r.Comma = '\t'
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Fatalf("Expected 5 rows, got %d", len(rows))
	}
	for i := range records {
		if strings.Join(rows[i], "|") != strings.Join(records[i], "|") {
			t.Errorf("Row %d = %v; want %v", i, rows[i], records[i])
		}
	}

	st := statuses(got)
	if len(st) != 2 {
		t.Fatalf("Expected 2 statuses, got %v", st)
	}
	if st[0].Severity != types.SeverityInfo {
		t.Errorf("First status = %v; want info", st[0])
	}
	if st[1].Severity != types.SeveritySuccess || st[1].Message != MsgCompleted {
		t.Errorf("Final status = %v; want success", st[1])
	}

	p := progress(got)
	if len(p) == 0 || p[len(p)-1] != 100 {
		t.Fatalf("Expected progress ending at 100, got %v", p)
	}
	for i := 1; i < len(p); i++ {
		if p[i] < p[i-1] {
			t.Errorf("Progress decreased: %v", p)
		}
	}
	if got[len(got)-1].Type != types.EventProgress {
		t.Errorf("Expected the last event to be progress 100, got %v", got[len(got)-1])
	}
}

const legacyCSV = `produit,origine,description
Crème brûlée,Lyon,"Dessert préféré de l'équipe, préparé à la crème fraîche"
Pâté,Périgueux,"Spécialité régionale très appréciée pendant l'été"
Café,Orléans,"Torréfié sur place, servi avec une crêpe sucrée"
Gâteau,Besançon,"Recette élaborée par un pâtissier célèbre de la région"
`

func TestRun_LegacyCSVToXLSXScenario(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "legacy.csv")
	outputFile := filepath.Join(tmpDir, "legacy.xlsx")

	encoded, err := charmap.Windows1252.NewEncoder().String(legacyCSV)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(inputFile, []byte(encoded), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(0)
	events, err := w.Start(Job{
		InputFile:  inputFile,
		OutputFile: outputFile,
		Kind:       types.ToXLSX,
		Conversion: mustResolve(t, inputFile, types.ToXLSX),
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	st := statuses(drain(t, events))

	if len(st) != 2 {
		t.Fatalf("Expected 2 statuses, got %v", st)
	}
	if st[0].Severity != types.SeverityWarning || !strings.Contains(st[0].Message, "File is not UTF-8 (") {
		t.Errorf("First status = %v; want warning naming the encoding", st[0])
	}
	if st[1].Severity != types.SeveritySuccess {
		t.Errorf("Final status = %v; want success", st[1])
	}

	f, err := excelize.OpenFile(outputFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := f.GetCellValue(f.GetSheetName(f.GetActiveSheetIndex()), "C2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "é") || !strings.Contains(got, "préféré") {
		t.Errorf("C2 = %q; want correctly decoded é", got)
	}
}

func TestRun_RemovesTemporaryFile(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "legacy.csv")
	encoded, _ := charmap.ISO8859_1.NewEncoder().String(legacyCSV)
	if err := os.WriteFile(inputFile, []byte(encoded), 0o644); err != nil {
		t.Fatal(err)
	}

	var seen string
	conv := converter.Conversion{
		Name: "record",
		Run: func(in, out string, _ chan<- float64) (*types.ConversionResult, error) {
			seen = in
			return &types.ConversionResult{InputFile: in, OutputFile: out}, nil
		},
	}

	events, err := New(0).Start(Job{InputFile: inputFile, OutputFile: filepath.Join(tmpDir, "x.tsv"), Conversion: conv})
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	if seen == "" || seen == inputFile {
		t.Fatalf("Expected conversion to read a temporary copy, got %q", seen)
	}
	if _, err := os.Stat(seen); !os.IsNotExist(err) {
		t.Errorf("Temporary file %s still exists", seen)
	}
	if _, err := os.Stat(inputFile); err != nil {
		t.Errorf("Original input was touched: %v", err)
	}
}

func TestRun_PrepareFailure(t *testing.T) {
	called := false
	conv := converter.Conversion{
		Name: "never",
		Run: func(in, out string, _ chan<- float64) (*types.ConversionResult, error) {
			called = true
			return nil, nil
		},
	}

	tmpDir := t.TempDir()
	events, err := New(0).Start(Job{
		InputFile:  filepath.Join(tmpDir, "missing.csv"),
		OutputFile: filepath.Join(tmpDir, "missing.tsv"),
		Conversion: conv,
	})
	if err != nil {
		t.Fatal(err)
	}
	st := statuses(drain(t, events))

	if called {
		t.Error("Conversion ran after preparation failed")
	}
	if len(st) == 0 || st[len(st)-1].Message != MsgPrepareFailed || st[len(st)-1].Severity != types.SeverityError {
		t.Errorf("Expected final prepare failure status, got %v", st)
	}
}

func TestRun_ConversionErrorRemovesPartialOutput(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "in.csv")
	outputFile := filepath.Join(tmpDir, "in.tsv")
	os.WriteFile(inputFile, []byte("a,b\n"), 0o644)

	conv := converter.Conversion{
		Name: "broken",
		Run: func(in, out string, _ chan<- float64) (*types.ConversionResult, error) {
			os.WriteFile(out, []byte("half"), 0o644)
			return nil, errors.New("disk full")
		},
	}

	events, err := New(0).Start(Job{InputFile: inputFile, OutputFile: outputFile, Conversion: conv})
	if err != nil {
		t.Fatal(err)
	}
	got := drain(t, events)
	st := statuses(got)

	last := st[len(st)-1]
	if last.Severity != types.SeverityError || !strings.Contains(last.Message, "disk full") {
		t.Errorf("Final status = %v; want conversion error", last)
	}
	for _, p := range progress(got) {
		if p == 100 {
			t.Error("Failed run reported 100% progress")
		}
	}
	if _, err := os.Stat(outputFile); !os.IsNotExist(err) {
		t.Error("Expected partial output to be removed")
	}
}

func TestRun_KeepsUntouchedExistingOutput(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "in.csv")
	outputFile := filepath.Join(tmpDir, "in.tsv")
	os.WriteFile(inputFile, []byte("a,b\n"), 0o644)
	os.WriteFile(outputFile, []byte("previous"), 0o644)

	conv := converter.Conversion{
		Name: "fails-early",
		Run: func(in, out string, _ chan<- float64) (*types.ConversionResult, error) {
			return nil, errors.New("bad row")
		},
	}

	events, err := New(0).Start(Job{InputFile: inputFile, OutputFile: outputFile, Conversion: conv})
	if err != nil {
		t.Fatal(err)
	}
	drain(t, events)

	data, err := os.ReadFile(outputFile)
	if err != nil || string(data) != "previous" {
		t.Errorf("Existing output should be kept, got %q, %v", data, err)
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "in.csv")
	os.WriteFile(inputFile, []byte("a,b\n"), 0o644)

	conv := converter.Conversion{
		Name: "panics",
		Run: func(in, out string, _ chan<- float64) (*types.ConversionResult, error) {
			panic("boom")
		},
	}

	events, err := New(0).Start(Job{InputFile: inputFile, OutputFile: filepath.Join(tmpDir, "in.tsv"), Conversion: conv})
	if err != nil {
		t.Fatal(err)
	}
	st := statuses(drain(t, events))

	last := st[len(st)-1]
	if last.Severity != types.SeverityError || !strings.Contains(last.Message, "boom") {
		t.Errorf("Final status = %v; want recovered panic", last)
	}
}

func TestStart_RejectsConcurrentRun(t *testing.T) {
	tmpDir := t.TempDir()
	inputFile := filepath.Join(tmpDir, "in.csv")
	os.WriteFile(inputFile, []byte("a,b\n"), 0o644)

	release := make(chan struct{})
	conv := converter.Conversion{
		Name: "blocking",
		Run: func(in, out string, _ chan<- float64) (*types.ConversionResult, error) {
			<-release
			return &types.ConversionResult{}, nil
		},
	}
	job := Job{InputFile: inputFile, OutputFile: filepath.Join(tmpDir, "in.tsv"), Conversion: conv}

	w := New(0)
	events, err := w.Start(job)
	if err != nil {
		t.Fatal(err)
	}
	if !w.Running() {
		t.Error("Expected worker to report a running conversion")
	}

	if _, err := w.Start(job); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Second Start error = %v; want ErrRunInProgress", err)
	}

	close(release)
	drain(t, events)

	if w.Running() {
		t.Error("Worker still running after its events were drained")
	}
	events, err = w.Start(Job{InputFile: inputFile, OutputFile: job.OutputFile, Conversion: converter.Conversion{
		Name: "quick",
		Run: func(in, out string, _ chan<- float64) (*types.ConversionResult, error) {
			return &types.ConversionResult{}, nil
		},
	}})
	if err != nil {
		t.Fatalf("Start after completion failed: %v", err)
	}
	drain(t, events)
}

func TestStart_RequiresConversion(t *testing.T) {
	if _, err := New(0).Start(Job{InputFile: "a.csv", OutputFile: "a.tsv"}); !errors.Is(err, converter.ErrUnsupportedFormat) {
		t.Errorf("Start error = %v; want ErrUnsupportedFormat", err)
	}
}

func TestConvert_ProgressDeduplicated(t *testing.T) {
	var got []types.Event
	fn := func(in, out string, progressChan chan<- float64) (*types.ConversionResult, error) {
		for i := 1; i <= 1000; i++ {
			progressChan <- float64(i) / 1000
		}
		return &types.ConversionResult{RowsProcessed: 1000}, nil
	}

	result, err := convert(fn, "in", "out", func(e types.Event) { got = append(got, e) })
	if err != nil {
		t.Fatal(err)
	}
	if result.RowsProcessed != 1000 {
		t.Errorf("RowsProcessed = %d; want 1000", result.RowsProcessed)
	}

	p := progress(got)
	if len(p) != 101 {
		t.Errorf("Expected 101 distinct percentages, got %d", len(p))
	}
	for i := 1; i < len(p); i++ {
		if p[i] <= p[i-1] {
			t.Fatalf("Progress not strictly increasing: %v", p)
		}
	}
}

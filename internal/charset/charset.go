// Package charset makes sure CSV input is UTF-8 before it is converted.
package charset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/nconklindev/oct/internal/types"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// SampleSize is the number of leading bytes inspected for detection.
const SampleSize = 4096

var ErrEncodingDetection = errors.New("encoding detection failed")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// aliases covers detector labels the html and IANA indexes do not know, and
// the Unicode forms whose byte order mark must be dropped when decoding.
var aliases = map[string]encoding.Encoding{
	"utf-8-sig": unicode.UTF8BOM,
	"utf-16le":  unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16be":  unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	"utf-32le":  utf32.UTF32(utf32.LittleEndian, utf32.UseBOM),
	"utf-32be":  utf32.UTF32(utf32.BigEndian, utf32.UseBOM),
	"gb-18030":  simplifiedchinese.GB18030,
}

// Result describes the file the conversion should read.
type Result struct {
	Converted bool
	Path      string
	Encoding  string
}

// Normalize checks the encoding of a CSV file and, when it is not UTF-8 or
// ASCII, writes a UTF-8 copy to a temporary file. Excel files and any other
// extension pass through untouched. The caller owns the temporary file.
func Normalize(path string, emit func(types.Event)) (Result, error) {
	if emit == nil {
		emit = func(types.Event) {}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
	case ".xlsx", ".xls":
		emit(types.StatusEvent(types.SeverityInfo, "Checking Excel file encoding..."))
		return Result{Path: path}, nil
	default:
		return Result{Path: path}, nil
	}

	result, err := normalizeCSV(path, emit)
	if err != nil {
		emit(types.StatusEvent(types.SeverityError,
			fmt.Sprintf("Error during encoding detection or conversion: %v", err)))
		return Result{}, fmt.Errorf("%w: %v", ErrEncodingDetection, err)
	}
	return result, nil
}

func normalizeCSV(path string, emit func(types.Event)) (Result, error) {
	label, err := DetectFile(path)
	if err != nil {
		return Result{}, err
	}
	slog.Debug("detected encoding", "path", path, "encoding", label)

	if IsUTF8(label) {
		emit(types.StatusEvent(types.SeverityInfo, "The CSV is UTF-8. Proceeding with conversion..."))
		return Result{Path: path, Encoding: label}, nil
	}

	enc, err := Lookup(label)
	if err != nil {
		return Result{}, err
	}

	emit(types.StatusEvent(types.SeverityWarning,
		fmt.Sprintf("File is not UTF-8 (%s).\nEncoding to UTF-8 before converting...", label)))

	tempPath, err := transcodeToTemp(path, enc)
	if err != nil {
		return Result{}, err
	}
	return Result{Converted: true, Path: tempPath, Encoding: label}, nil
}

// DetectFile returns the encoding label guessed from the file's first
// SampleSize bytes.
func DetectFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sample := make([]byte, SampleSize)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return Detect(sample[:n], n == SampleSize)
}

// Detect guesses the encoding of sample. truncated reports whether sample
// may end in the middle of a multi-byte character. UTF-8 with a leading byte
// order mark is reported as "utf-8-sig" so the mark is stripped on decode.
func Detect(sample []byte, truncated bool) (string, error) {
	if len(sample) == 0 {
		return "ascii", nil
	}
	if bytes.HasPrefix(sample, utf8BOM) {
		return "utf-8-sig", nil
	}

	check := sample
	if truncated {
		check = trimPartialRune(sample)
	}
	if isASCII(check) {
		return "ascii", nil
	}
	if utf8.Valid(check) {
		return "utf-8", nil
	}

	best, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		return "", err
	}
	return strings.ToLower(best.Charset), nil
}

// IsUTF8 reports whether label names UTF-8 or its ASCII subset.
func IsUTF8(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf-8", "utf8", "ascii", "us-ascii":
		return true
	}
	return false
}

// Lookup resolves a detector label to a decoder.
func Lookup(label string) (encoding.Encoding, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	if enc, ok := aliases[label]; ok {
		return enc, nil
	}
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("no decoder for encoding %q", label)
	}
	return enc, nil
}

func transcodeToTemp(path string, enc encoding.Encoding) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "oct-*.csv")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, transform.NewReader(src, enc.NewDecoder())); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	return tmpPath, nil
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// trimPartialRune drops an incomplete UTF-8 sequence cut off at the end.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(b); i++ {
		c := b[len(b)-i]
		if c < utf8.RuneSelf {
			return b
		}
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

// Cleanup removes a temporary file produced by Normalize.
func Cleanup(r Result) error {
	if !r.Converted || r.Path == "" {
		return nil
	}
	err := os.Remove(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

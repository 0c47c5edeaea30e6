// Package dataset loads tabular data sources from disk into the
// in-memory model. Loading is all or nothing: a malformed row fails the
// whole load rather than producing a partial dataset.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/logging"
	"github.com/crosscheckhq/crosscheck/pkg/tabular"
)

// bom is the UTF-8 byte order mark some exports prepend to the header.
const bom = "\ufeff"

// encodings maps configuration encoding names to decoders. UTF-8 needs
// no transform and is handled separately.
var encodings = map[string]encoding.Encoding{
	"latin-1":      charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"utf-16":       unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	"utf-16le":     unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
	"utf-16be":     unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
}

// LoadCSV reads a delimited file into a dataset, inferring cell types.
// The first row is the header; every data row must match its width.
func LoadCSV(name, path, delimiter, encodingName string) (*tabular.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open data source", path, err)
	}
	defer file.Close()

	reader, err := decodingReader(file, encodingName)
	if err != nil {
		return nil, err
	}

	ds, err := ReadCSV(name, reader, delimiter)
	if err != nil {
		return nil, errors.WrapParse("csv", path, err)
	}

	logging.Info().
		Str("dataset", name).
		Str("path", path).
		Int("records", ds.Len()).
		Msg("Loaded data source")
	return ds, nil
}

// ReadCSV parses delimited content from a reader.
func ReadCSV(name string, r io.Reader, delimiter string) (*tabular.Dataset, error) {
	comma, err := delimiterRune(delimiter)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no header row")
	}

	columns := make([]string, len(rows[0]))
	seen := make(map[string]struct{}, len(rows[0]))
	for i, col := range rows[0] {
		col = strings.TrimSpace(strings.TrimPrefix(col, bom))
		if col == "" {
			return nil, fmt.Errorf("empty column name at position %d", i+1)
		}
		if _, dup := seen[col]; dup {
			return nil, fmt.Errorf("duplicate column name %q", col)
		}
		seen[col] = struct{}{}
		columns[i] = col
	}

	records := make([]tabular.Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(tabular.Record, len(columns))
		for i, col := range columns {
			rec[col] = tabular.Infer(row[i])
		}
		records = append(records, rec)
	}

	return tabular.NewDataset(name, columns, records), nil
}

// decodingReader wraps the reader with a charset decoder when the
// source is not UTF-8.
func decodingReader(r io.Reader, encodingName string) (io.Reader, error) {
	normalized := strings.ToLower(strings.TrimSpace(encodingName))
	if normalized == "" || normalized == "utf-8" || normalized == "utf8" {
		return r, nil
	}
	enc, ok := encodings[normalized]
	if !ok {
		return nil, errors.NewConfigError("dataset",
			fmt.Sprintf("unsupported encoding %q", encodingName), nil)
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// delimiterRune validates the configured delimiter.
func delimiterRune(delimiter string) (rune, error) {
	if delimiter == "" {
		return ',', nil
	}
	if delimiter == "\\t" || delimiter == "tab" {
		return '\t', nil
	}
	runes := []rune(delimiter)
	if len(runes) != 1 {
		return 0, errors.NewConfigError("dataset",
			fmt.Sprintf("delimiter must be a single character, got %q", delimiter), nil)
	}
	return runes[0], nil
}

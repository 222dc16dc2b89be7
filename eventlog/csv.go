package eventlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// csvHeader is the fixed column layout of exported logs.
var csvHeader = []string{"type", "buyer", "at", "data"}

// WriteCSV exports records as CSV with a header row. Payloads are kept
// as their JSON encoding in the data column.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, rec := range records {
		row := []string{
			rec.Type,
			rec.Buyer,
			strconv.FormatInt(rec.At, 10),
			string(rec.Data),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportCSV writes records to a CSV file.
func ExportCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv export: %w", err)
	}
	defer f.Close()
	return WriteCSV(f, records)
}

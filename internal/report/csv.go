package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

// utf8BOM keeps Excel from misreading non-ASCII names in the exported table.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV renders the rows as a BOM-prefixed CSV document.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.No),
			row.Filename,
			row.StudentID,
			row.Name,
			formatScore(row.Score),
			row.Evaluation,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

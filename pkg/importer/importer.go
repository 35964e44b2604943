// Package importer parses bulk order input: a CSV export or lines pasted
// straight from a spreadsheet. One row per order, bad rows are reported and
// skipped rather than aborting the batch.
package importer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one parsed order line: nro, fecha, llave, monto and an optional
// driver column.
type Row struct {
	Nro   int
	Fecha time.Time
	Llave string
	Monto float64
	Envio string
}

// LineError reports a rejected input line (1-based).
type LineError struct {
	Line int
	Msg  string
}

func (e LineError) String() string {
	return fmt.Sprintf("línea %d: %s", e.Line, e.Msg)
}

// Parse reads pasted or CSV text into rows. Fields may be separated by
// tabs, semicolons or commas; a header line is detected by a non-numeric
// first field and skipped.
func Parse(text string) ([]Row, []LineError) {
	var rows []Row
	var errs []LineError
	for i, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		n := i + 1
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := splitFields(line)
		if len(fields) < 4 {
			errs = append(errs, LineError{n, "se esperan al menos 4 columnas (nro, fecha, llave, monto)"})
			continue
		}
		nro, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			if i == 0 { // header row
				continue
			}
			errs = append(errs, LineError{n, "nro inválido: " + fields[0]})
			continue
		}
		fecha, err := time.Parse("2006-01-02", strings.TrimSpace(fields[1]))
		if err != nil {
			errs = append(errs, LineError{n, "fecha inválida (YYYY-MM-DD): " + fields[1]})
			continue
		}
		llave := strings.ToUpper(strings.TrimSpace(fields[2]))
		if llave == "" {
			errs = append(errs, LineError{n, "llave vacía"})
			continue
		}
		monto, err := parseMonto(fields[3])
		if err != nil {
			errs = append(errs, LineError{n, "monto inválido: " + fields[3]})
			continue
		}
		row := Row{Nro: nro, Fecha: fecha, Llave: llave, Monto: monto}
		if len(fields) > 4 {
			row.Envio = strings.TrimSpace(fields[4])
		}
		rows = append(rows, row)
	}
	return rows, errs
}

// splitFields picks the separator per line: tab wins over semicolon over
// comma, so spreadsheet pastes and plain CSV both work.
func splitFields(line string) []string {
	switch {
	case strings.Contains(line, "\t"):
		return strings.Split(line, "\t")
	case strings.Contains(line, ";"):
		return strings.Split(line, ";")
	default:
		return strings.Split(line, ",")
	}
}

func parseMonto(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "S/")
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("monto %q", s)
	}
	return v, nil
}

// Package export renders position runs for downstream collaborators: a
// delimited text table for spreadsheets and a GeoJSON ground track for maps.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/navtrace/navtrace/internal/orbit"
)

// WriteCSV writes samples as a delimited table with header t,x,y,z. The epoch
// is formatted to 11 decimal places; coordinates use the shortest exact form,
// in meters.
func WriteCSV(w io.Writer, samples []orbit.PositionSample) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"t", "x", "y", "z"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, 4)
	for _, s := range samples {
		row[0] = strconv.FormatFloat(s.T, 'f', 11, 64)
		row[1] = strconv.FormatFloat(s.X, 'g', -1, 64)
		row[2] = strconv.FormatFloat(s.Y, 'g', -1, 64)
		row[3] = strconv.FormatFloat(s.Z, 'g', -1, 64)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing sample row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

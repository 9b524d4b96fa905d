package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/rewired-gh/oracleconf/internal/models"
)

// WriteChartCSV writes the series as chart data for an external plotting tool.
// When threshold is non-nil every row carries it so the tool can draw a reference line.
func WriteChartCSV(w io.Writer, series models.Series, threshold *float64) error {
	cw := csv.NewWriter(w)

	header := []string{"time", "confidence"}
	if threshold != nil {
		header = append(header, "threshold")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, o := range series {
		row := []string{
			strconv.FormatInt(o.Time, 10),
			strconv.FormatFloat(o.Confidence, 'f', -1, 64),
		}
		if threshold != nil {
			row = append(row, strconv.FormatFloat(*threshold, 'f', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

package backup

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/starford/tiledash/internal/models"
	"github.com/starford/tiledash/internal/richtext"
)

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{"Title", "Status", "Priority", "Due Date", "Content (first 100 chars)"}

const csvContentRunes = 100

// WriteCSV writes a lossy one-row-per-tile projection of tiles to w.
func WriteCSV(w io.Writer, tiles []models.Tile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("backup: csv header: %w", err)
	}
	for _, t := range tiles {
		content := strings.ReplaceAll(richtext.Preview(t.Content, csvContentRunes), ",", ";")
		row := []string{t.Title, orNA(t.Status), orNA(t.Priority), orNA(t.DueDate), content}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("backup: csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("backup: csv flush: %w", err)
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/cheaphours/core/model"
)

// Format names an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Header is the CSV column order.
var Header = []string{"id", "rule_id", "date", "start_hour", "end_hour", "price_per_kwh", "status", "executed_at"}

// ParseFormat accepts json or csv in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatCSV:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Write encodes actions to w in format f.
func Write(w io.Writer, f Format, actions []model.ScheduledAction) error {
	if f == FormatCSV {
		return WriteCSV(w, actions)
	}
	return WriteJSON(w, actions)
}

// WriteJSON writes the scheduled actions to w as a JSON array.
func WriteJSON(w io.Writer, actions []model.ScheduledAction) error {
	if actions == nil {
		actions = []model.ScheduledAction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(actions)
}

// WriteCSV writes the scheduled actions to w as CSV with a header row.
// Missing prices and execution times are left empty.
func WriteCSV(w io.Writer, actions []model.ScheduledAction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, a := range actions {
		var price, executed string
		if a.Price != nil {
			price = strconv.FormatFloat(*a.Price, 'f', -1, 64)
		}
		if a.ExecutedAt != nil {
			executed = a.ExecutedAt.Format(time.RFC3339)
		}
		rec := []string{
			a.ID,
			a.RuleID,
			model.DateKey(a.Date),
			strconv.Itoa(a.StartHour),
			strconv.Itoa(a.EndHour),
			price,
			string(a.Status),
			executed,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

package voicecache

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/MoodPipe/internal/models"
)

// scanTrace scans a TraceRecord from sql.Rows.
func scanTrace(rows *sql.Rows) (models.TraceRecord, error) {
	var t models.TraceRecord
	var strategy string
	var traceJSON sql.NullString
	err := rows.Scan(&t.UserID, &strategy, &traceJSON, &t.Crisis, &t.ElapsedMS, &t.Time)
	if err != nil {
		return t, fmt.Errorf("scan trace failed: %w", err)
	}
	t.Strategy = models.Strategy(strategy)
	if traceJSON.Valid && traceJSON.String != "" {
		if err := json.Unmarshal([]byte(traceJSON.String), &t.ToolTrace); err != nil {
			return t, fmt.Errorf("unmarshal tool trace failed: %w", err)
		}
	}
	return t, nil
}

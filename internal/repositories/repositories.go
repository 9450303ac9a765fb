// package repositories provides persistence for credentials, desired addons and run history
package repositories

import (
	"database/sql"
	"fmt"
)

// nextRunNumber claims the next run number inside tx.
//
// The counter lives in the single-row runs_sequence table, so a rolled-back save gives its
// number back and run numbers stay gapless.
func nextRunNumber(tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRow("UPDATE runs_sequence SET value = value + 1 WHERE id = 1 RETURNING value").Scan(&n)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("run counter missing, database not migrated")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to claim run number: %w", err)
	}
	return n, nil
}

package repositories

import (
	"database/sql"
	"fmt"
)

// requireRows checks that an Exec touched at least one row, returning the
// given sentinel wrapped with the entity id when it did not.
func requireRows(result sql.Result, sentinel error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return nil
}

/*
 * This file is part of Bitrack.
 *
 * Bitrack is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * Bitrack is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with Bitrack.  If not, see <http://www.gnu.org/licenses/>.
 */

package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"bitrack/collector"
)

// PurgeInactivePeers deletes peers that have not announced since now - inactivity
func (db *Database) PurgeInactivePeers(ctx context.Context, now time.Time, inactivity time.Duration) (int64, error) {
	startTime := time.Now()
	oldestActive := now.UTC().Add(-inactivity)

	result, err := db.perform(ctx, func() (sql.Result, error) {
		return db.conn.ExecContext(ctx, "DELETE FROM peers WHERE updated_at < ?", oldestActive)
	})
	if err != nil {
		return 0, err
	}

	if result == nil {
		return 0, errDeadlockRetries
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	elapsedTime := time.Since(startTime)
	collector.UpdatePurgeInactivePeersTime(elapsedTime)
	collector.AddPurgedPeers(rows)

	slog.Info("purged inactive peers", "rows", rows, "elapsed", elapsedTime)

	return rows, nil
}

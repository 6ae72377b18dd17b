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
	"errors"
	"time"

	"bitrack/database/types"
	"bitrack/metainfo"

	"github.com/google/uuid"
)

// ErrNotFound returned by lookups outside the announce path
var ErrNotFound = errors.New("not found")

// ImportTorrent stores a parsed .torrent with its file list and raw bytes.
// Importing the same info hash again replaces name, size and files but keeps the torrent id and its statistics.
func (db *Database) ImportTorrent(ctx context.Context, mi *metainfo.Metainfo, name string, raw []byte,
	now time.Time) (t *types.Torrent, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if name == "" {
		name = mi.Name
	}

	t, err = scanTorrent(tx.QueryRowContext(ctx,
		"SELECT "+torrentColumns+" FROM torrents WHERE info_hash = ? FOR UPDATE", mi.InfoHash))
	if errors.Is(err, sql.ErrNoRows) {
		t = &types.Torrent{
			ID:        uuid.New(),
			InfoHash:  mi.InfoHash,
			CreatedAt: now.UTC(),
		}
	} else if err != nil {
		return nil, err
	}

	t.Name = name
	t.Size = mi.TotalSize()
	t.UpdatedAt = now.UTC()

	if err = upsertTorrent(ctx, tx, t); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM torrent_files WHERE torrent_id = ?", t.ID); err != nil {
		return nil, err
	}

	for _, f := range mi.Files {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO torrent_files (id, torrent_id, file_name, size) VALUES (?, ?, ?, ?)",
			uuid.New(), t.ID, f.Path, f.Size); err != nil {
			return nil, err
		}
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO torrent_meta_files (torrent_id, data) VALUES (?, ?) "+
			"ON DUPLICATE KEY UPDATE data = VALUES(data)", t.ID, raw); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return t, nil
}

func (db *Database) TorrentFiles(ctx context.Context, torrentID uuid.UUID) ([]types.TorrentFile, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, torrent_id, file_name, size FROM torrent_files WHERE torrent_id = ? ORDER BY file_name",
		torrentID)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = rows.Close()
	}()

	var files []types.TorrentFile

	for rows.Next() {
		var f types.TorrentFile

		if err = rows.Scan(&f.ID, &f.TorrentID, &f.FileName, &f.Size); err != nil {
			return nil, err
		}

		files = append(files, f)
	}

	return files, rows.Err()
}

// MetaFile returns the stored .torrent for a registered passcode, ErrNotFound otherwise
func (db *Database) MetaFile(ctx context.Context, passcode, infoHash []byte) (*types.Torrent, []byte, error) {
	var exists bool

	err := db.conn.QueryRowContext(ctx, "SELECT 1 FROM users WHERE passcode = ?", passcode).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	} else if err != nil {
		return nil, nil, observe(err)
	}

	var data []byte

	t, err := scanTorrent(db.conn.QueryRowContext(ctx, "SELECT "+torrentColumns+" FROM torrents WHERE info_hash = ?",
		infoHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	} else if err != nil {
		return nil, nil, observe(err)
	}

	err = db.conn.QueryRowContext(ctx, "SELECT data FROM torrent_meta_files WHERE torrent_id = ?", t.ID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	} else if err != nil {
		return nil, nil, observe(err)
	}

	return t, data, nil
}

// CreateUser mints a user with the given passcode and zero totals
func (db *Database) CreateUser(ctx context.Context, passcode []byte) (*types.User, error) {
	u := &types.User{ID: uuid.New(), Passcode: passcode}

	if _, err := db.conn.ExecContext(ctx, "INSERT INTO users (id, passcode, uploaded, downloaded) VALUES (?, ?, 0, 0)",
		u.ID, u.Passcode); err != nil {
		return nil, err
	}

	return u, nil
}

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

package types

import (
	"time"

	"github.com/google/uuid"
)

type Torrent struct {
	ID       uuid.UUID
	InfoHash TorrentHash
	Name     string
	Size     int64

	// Hidden from listings until the first announce
	Visible bool

	Completed int64

	LastAction *time.Time
	LastSeeder *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type TorrentFile struct {
	ID        uuid.UUID
	TorrentID uuid.UUID
	FileName  string
	Size      int64
}

// Counts Read-only per-torrent aggregate of live peers
type Counts struct {
	Seeders   int64
	Leechers  int64
	Completed int64
}

type User struct {
	ID       uuid.UUID
	Passcode []byte

	Uploaded   int64
	Downloaded int64
}

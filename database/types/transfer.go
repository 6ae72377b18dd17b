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
	"github.com/jinzhu/copier"
)

// Transfer Lifetime accounting for one (UserID, TorrentID) pair, independent of peer_id
type Transfer struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TorrentID uuid.UUID

	BytesUploaded   int64
	BytesDownloaded int64
	TimeSeeded      int64 // seconds

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewTransferFromPeer derives the first Transfer of a pair from the peer that reported it
func NewTransferFromPeer(peer *Peer, now time.Time) (*Transfer, error) {
	t := &Transfer{}

	if err := copier.Copy(t, peer); err != nil {
		return nil, err
	}

	t.ID = uuid.New()
	t.TimeSeeded = 0
	t.CreatedAt = now
	t.UpdatedAt = now
	t.CompletedAt = nil

	if peer.Seeder {
		completedAt := now
		t.CompletedAt = &completedAt
	}

	return t, nil
}

// Accrue adds per-announce deltas; deltas may be negative
func (t *Transfer) Accrue(deltaUp, deltaDown, deltaSeedTime int64, now time.Time) {
	t.BytesUploaded += deltaUp
	t.BytesDownloaded += deltaDown
	t.TimeSeeded += deltaSeedTime
	t.UpdatedAt = now
}

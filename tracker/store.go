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

package tracker

import (
	"context"

	"bitrack/database/types"

	"github.com/google/uuid"
)

// Store the persistent swarm state. Lookups return nil, nil when no row matches.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// ScrapeCounts yields zero counts for unknown info hashes
	ScrapeCounts(ctx context.Context, infoHash []byte) (types.Counts, error)
}

// Tx one announce worth of reads and writes, applied atomically on Commit
type Tx interface {
	UserByPasscode(passcode []byte) (*types.User, error)
	TorrentByInfoHash(infoHash []byte) (*types.Torrent, error)
	PeerForAnnounce(torrentID, userID uuid.UUID, peerID []byte) (*types.Peer, error)
	TransferForAnnounce(userID, torrentID uuid.UUID) (*types.Transfer, error)

	UpsertPeer(peer *types.Peer) error
	DeletePeer(peer *types.Peer) error
	UpsertTransfer(transfer *types.Transfer) error
	UpsertTorrent(torrent *types.Torrent) error
	UpsertUser(user *types.User) error

	// PeersForTorrent most recently updated first
	PeersForTorrent(torrentID uuid.UUID, seeder bool, limit int) ([]types.Peer, error)
	CountsForTorrent(torrentID uuid.UUID) (types.Counts, error)

	Commit() error
	Rollback() error
}

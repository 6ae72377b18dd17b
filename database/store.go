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
	"net/netip"

	"bitrack/database/types"
	"bitrack/tracker"

	"github.com/google/uuid"
)

const peerColumns = "id, torrent_id, user_id, ip_address, port, bytes_uploaded, bytes_downloaded, bytes_left, " +
	"seeder, peer_id, user_agent, crypto_enabled, crypto_port, offset_uploaded, offset_downloaded, " +
	"created_at, finished_at, updated_at"

const torrentColumns = "id, info_hash, name, size, visible, completed, last_action, last_seeder, created_at, updated_at"

var _ tracker.Store = (*Database)(nil)

type scanner interface {
	Scan(dest ...any) error
}

type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

var _ tracker.Tx = (*Tx)(nil)

// Begin rows read through the returned Tx are locked until Commit or Rollback
func (db *Database) Begin(ctx context.Context) (tracker.Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, observe(err)
	}

	return &Tx{ctx: ctx, tx: tx}, nil
}

func (db *Database) ScrapeCounts(ctx context.Context, infoHash []byte) (c types.Counts, err error) {
	err = db.conn.QueryRowContext(ctx,
		"SELECT t.completed, COALESCE(SUM(p.seeder = 1), 0), COALESCE(SUM(p.seeder = 0), 0) "+
			"FROM torrents AS t LEFT JOIN peers AS p ON p.torrent_id = t.id "+
			"WHERE t.info_hash = ? GROUP BY t.id, t.completed", infoHash).
		Scan(&c.Completed, &c.Seeders, &c.Leechers)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Counts{}, nil
	}

	return c, observe(err)
}

func (tx *Tx) UserByPasscode(passcode []byte) (*types.User, error) {
	user := &types.User{}

	err := tx.tx.QueryRowContext(tx.ctx,
		"SELECT id, passcode, uploaded, downloaded FROM users WHERE passcode = ? FOR UPDATE", passcode).
		Scan(&user.ID, &user.Passcode, &user.Uploaded, &user.Downloaded)

	return found(user, err)
}

func (tx *Tx) TorrentByInfoHash(infoHash []byte) (*types.Torrent, error) {
	t, err := scanTorrent(tx.tx.QueryRowContext(tx.ctx,
		"SELECT "+torrentColumns+" FROM torrents WHERE info_hash = ? FOR UPDATE", infoHash))

	return found(t, err)
}

func (tx *Tx) PeerForAnnounce(torrentID, userID uuid.UUID, peerID []byte) (*types.Peer, error) {
	p, err := scanPeer(tx.tx.QueryRowContext(tx.ctx,
		"SELECT "+peerColumns+" FROM peers WHERE torrent_id = ? AND user_id = ? AND peer_id = ? FOR UPDATE",
		torrentID, userID, peerID))

	return found(p, err)
}

func (tx *Tx) TransferForAnnounce(userID, torrentID uuid.UUID) (*types.Transfer, error) {
	t := &types.Transfer{}

	err := tx.tx.QueryRowContext(tx.ctx,
		"SELECT id, user_id, torrent_id, bytes_uploaded, bytes_downloaded, time_seeded, "+
			"created_at, updated_at, completed_at FROM transfers WHERE user_id = ? AND torrent_id = ? FOR UPDATE",
		userID, torrentID).
		Scan(&t.ID, &t.UserID, &t.TorrentID, &t.BytesUploaded, &t.BytesDownloaded, &t.TimeSeeded,
			&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt)

	return found(t, err)
}

func (tx *Tx) UpsertPeer(p *types.Peer) error {
	_, err := tx.tx.ExecContext(tx.ctx,
		"INSERT INTO peers ("+peerColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE bytes_uploaded = VALUES(bytes_uploaded), "+
			"bytes_downloaded = VALUES(bytes_downloaded), bytes_left = VALUES(bytes_left), "+
			"seeder = VALUES(seeder), crypto_enabled = VALUES(crypto_enabled), "+
			"finished_at = VALUES(finished_at), updated_at = VALUES(updated_at)",
		p.ID, p.TorrentID, p.UserID, p.IPString(), p.Port, p.BytesUploaded, p.BytesDownloaded, p.BytesLeft,
		p.Seeder, p.PeerID, p.UserAgent, p.CryptoEnabled, p.CryptoPort, p.OffsetUploaded, p.OffsetDownloaded,
		p.CreatedAt, p.FinishedAt, p.UpdatedAt)

	return observe(err)
}

func (tx *Tx) DeletePeer(p *types.Peer) error {
	_, err := tx.tx.ExecContext(tx.ctx,
		"DELETE FROM peers WHERE torrent_id = ? AND user_id = ? AND peer_id = ?", p.TorrentID, p.UserID, p.PeerID)

	return observe(err)
}

func (tx *Tx) UpsertTransfer(t *types.Transfer) error {
	_, err := tx.tx.ExecContext(tx.ctx,
		"INSERT INTO transfers (id, user_id, torrent_id, bytes_uploaded, bytes_downloaded, time_seeded, "+
			"created_at, updated_at, completed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE bytes_uploaded = VALUES(bytes_uploaded), "+
			"bytes_downloaded = VALUES(bytes_downloaded), time_seeded = VALUES(time_seeded), "+
			"updated_at = VALUES(updated_at), completed_at = VALUES(completed_at)",
		t.ID, t.UserID, t.TorrentID, t.BytesUploaded, t.BytesDownloaded, t.TimeSeeded,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt)

	return observe(err)
}

func (tx *Tx) UpsertTorrent(t *types.Torrent) error {
	return observe(upsertTorrent(tx.ctx, tx.tx, t))
}

func upsertTorrent(ctx context.Context, tx *sql.Tx, t *types.Torrent) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO torrents ("+torrentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE name = VALUES(name), size = VALUES(size), visible = VALUES(visible), "+
			"completed = VALUES(completed), last_action = VALUES(last_action), "+
			"last_seeder = VALUES(last_seeder), updated_at = VALUES(updated_at)",
		t.ID, t.InfoHash, t.Name, t.Size, t.Visible, t.Completed, t.LastAction, t.LastSeeder,
		t.CreatedAt, t.UpdatedAt)

	return err
}

func (tx *Tx) UpsertUser(u *types.User) error {
	_, err := tx.tx.ExecContext(tx.ctx,
		"INSERT INTO users (id, passcode, uploaded, downloaded) VALUES (?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE uploaded = VALUES(uploaded), downloaded = VALUES(downloaded)",
		u.ID, u.Passcode, u.Uploaded, u.Downloaded)

	return observe(err)
}

func (tx *Tx) PeersForTorrent(torrentID uuid.UUID, seeder bool, limit int) ([]types.Peer, error) {
	rows, err := tx.tx.QueryContext(tx.ctx,
		"SELECT "+peerColumns+" FROM peers WHERE torrent_id = ? AND seeder = ? "+
			"ORDER BY updated_at DESC, id LIMIT ?", torrentID, seeder, limit)
	if err != nil {
		return nil, observe(err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var peers []types.Peer

	for rows.Next() {
		p, err := scanPeer(rows)
		if err != nil {
			return nil, err
		}

		peers = append(peers, *p)
	}

	return peers, observe(rows.Err())
}

func (tx *Tx) CountsForTorrent(torrentID uuid.UUID) (c types.Counts, err error) {
	err = tx.tx.QueryRowContext(tx.ctx,
		"SELECT COALESCE(SUM(seeder = 1), 0), COALESCE(SUM(seeder = 0), 0) FROM peers WHERE torrent_id = ?",
		torrentID).Scan(&c.Seeders, &c.Leechers)
	if err != nil {
		return c, observe(err)
	}

	err = tx.tx.QueryRowContext(tx.ctx, "SELECT completed FROM torrents WHERE id = ?", torrentID).
		Scan(&c.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
	}

	return c, observe(err)
}

func (tx *Tx) Commit() error {
	return observe(tx.tx.Commit())
}

func (tx *Tx) Rollback() error {
	return tx.tx.Rollback()
}

// found maps sql.ErrNoRows to nil, nil
func found[T any](v *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, observe(err)
	}

	return v, nil
}

func scanPeer(row scanner) (*types.Peer, error) {
	var (
		p  types.Peer
		ip string
	)

	err := row.Scan(&p.ID, &p.TorrentID, &p.UserID, &ip, &p.Port, &p.BytesUploaded, &p.BytesDownloaded,
		&p.BytesLeft, &p.Seeder, &p.PeerID, &p.UserAgent, &p.CryptoEnabled, &p.CryptoPort,
		&p.OffsetUploaded, &p.OffsetDownloaded, &p.CreatedAt, &p.FinishedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if p.IPAddress, err = netip.ParseAddr(ip); err != nil {
		return nil, err
	}

	return &p, nil
}

func scanTorrent(row scanner) (*types.Torrent, error) {
	var t types.Torrent

	err := row.Scan(&t.ID, &t.InfoHash, &t.Name, &t.Size, &t.Visible, &t.Completed, &t.LastAction,
		&t.LastSeeder, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

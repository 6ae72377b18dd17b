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

// Package trackertest provides an in-memory tracker.Store
package trackertest

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"bitrack/database/types"
	"bitrack/tracker"

	"github.com/google/uuid"
)

var ErrTxDone = errors.New("transaction has already been committed or rolled back")

type state struct {
	users     map[uuid.UUID]types.User
	torrents  map[uuid.UUID]types.Torrent
	peers     map[uuid.UUID]types.Peer
	transfers map[uuid.UUID]types.Transfer
}

func (s *state) clone() *state {
	return &state{
		users:     maps.Clone(s.users),
		torrents:  maps.Clone(s.torrents),
		peers:     maps.Clone(s.peers),
		transfers: maps.Clone(s.transfers),
	}
}

// Store transactions are serialized; a Tx works on a private copy that replaces the state on Commit
type Store struct {
	mu    sync.Mutex // held for the lifetime of a Tx
	data  *state
	fails map[string]error
}

var _ tracker.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		data: &state{
			users:     make(map[uuid.UUID]types.User),
			torrents:  make(map[uuid.UUID]types.Torrent),
			peers:     make(map[uuid.UUID]types.Peer),
			transfers: make(map[uuid.UUID]types.Transfer),
		},
		fails: make(map[string]error),
	}
}

// FailOn makes the named Tx method (e.g. "UpsertUser") or "Begin"/"ScrapeCounts" return err
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fails[op] = err
}

func (s *Store) Begin(_ context.Context) (tracker.Tx, error) {
	s.mu.Lock()

	if err := s.fails["Begin"]; err != nil {
		s.mu.Unlock()
		return nil, err
	}

	return &Tx{store: s, data: s.data.clone()}, nil
}

func (s *Store) ScrapeCounts(_ context.Context, infoHash []byte) (types.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fails["ScrapeCounts"]; err != nil {
		return types.Counts{}, err
	}

	for _, t := range s.data.torrents {
		if bytes.Equal(t.InfoHash[:], infoHash) {
			return s.data.counts(t.ID), nil
		}
	}

	return types.Counts{}, nil
}

func (s *state) counts(torrentID uuid.UUID) (c types.Counts) {
	for _, p := range s.peers {
		if p.TorrentID != torrentID {
			continue
		}

		if p.Seeder {
			c.Seeders++
		} else {
			c.Leechers++
		}
	}

	c.Completed = s.torrents[torrentID].Completed

	return c
}

// AddUser stores a user with the given passcode
func (s *Store) AddUser(passcode []byte) types.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := types.User{ID: uuid.New(), Passcode: bytes.Clone(passcode)}
	s.data.users[u.ID] = u

	return u
}

// AddTorrent stores a hidden torrent with the given info hash
func (s *Store) AddTorrent(infoHash types.TorrentHash) types.Torrent {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := types.Torrent{ID: uuid.New(), InfoHash: infoHash}
	s.data.torrents[t.ID] = t

	return t
}

// AddPeer stores p as is
func (s *Store) AddPeer(p types.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.peers[p.ID] = p
}

func (s *Store) User(id uuid.UUID) types.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data.users[id]
}

func (s *Store) Torrent(id uuid.UUID) types.Torrent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data.torrents[id]
}

// Peers all stored peers of a torrent, ordered by creation
func (s *Store) Peers(torrentID uuid.UUID) []types.Peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var peers []types.Peer

	for _, p := range s.data.peers {
		if p.TorrentID == torrentID {
			peers = append(peers, p)
		}
	}

	slices.SortFunc(peers, func(a, b types.Peer) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return peers
}

// Transfer the transfer of a (user, torrent) pair, if any
func (s *Store) Transfer(userID, torrentID uuid.UUID) (types.Transfer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.data.transfers {
		if t.UserID == userID && t.TorrentID == torrentID {
			return t, true
		}
	}

	return types.Transfer{}, false
}

func (s *Store) TransferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.data.transfers)
}

type Tx struct {
	store *Store
	data  *state
	done  bool
}

var _ tracker.Tx = (*Tx)(nil)

func (tx *Tx) fail(op string) error {
	if tx.done {
		return ErrTxDone
	}

	return tx.store.fails[op]
}

func (tx *Tx) UserByPasscode(passcode []byte) (*types.User, error) {
	if err := tx.fail("UserByPasscode"); err != nil {
		return nil, err
	}

	for _, u := range tx.data.users {
		if bytes.Equal(u.Passcode, passcode) {
			return &u, nil
		}
	}

	return nil, nil
}

func (tx *Tx) TorrentByInfoHash(infoHash []byte) (*types.Torrent, error) {
	if err := tx.fail("TorrentByInfoHash"); err != nil {
		return nil, err
	}

	for _, t := range tx.data.torrents {
		if bytes.Equal(t.InfoHash[:], infoHash) {
			return &t, nil
		}
	}

	return nil, nil
}

func (tx *Tx) PeerForAnnounce(torrentID, userID uuid.UUID, peerID []byte) (*types.Peer, error) {
	if err := tx.fail("PeerForAnnounce"); err != nil {
		return nil, err
	}

	if p, ok := tx.data.findPeer(torrentID, userID, peerID); ok {
		return &p, nil
	}

	return nil, nil
}

func (s *state) findPeer(torrentID, userID uuid.UUID, peerID []byte) (types.Peer, bool) {
	for _, p := range s.peers {
		if p.TorrentID == torrentID && p.UserID == userID && bytes.Equal(p.PeerID, peerID) {
			return p, true
		}
	}

	return types.Peer{}, false
}

func (tx *Tx) TransferForAnnounce(userID, torrentID uuid.UUID) (*types.Transfer, error) {
	if err := tx.fail("TransferForAnnounce"); err != nil {
		return nil, err
	}

	for _, t := range tx.data.transfers {
		if t.UserID == userID && t.TorrentID == torrentID {
			return &t, nil
		}
	}

	return nil, nil
}

// UpsertPeer a conflicting (torrent, user, peer_id) row is updated in place and keeps its id
func (tx *Tx) UpsertPeer(peer *types.Peer) error {
	if err := tx.fail("UpsertPeer"); err != nil {
		return err
	}

	row := *peer

	if existing, ok := tx.data.findPeer(peer.TorrentID, peer.UserID, peer.PeerID); ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	}

	tx.data.peers[row.ID] = row

	return nil
}

func (tx *Tx) DeletePeer(peer *types.Peer) error {
	if err := tx.fail("DeletePeer"); err != nil {
		return err
	}

	if existing, ok := tx.data.findPeer(peer.TorrentID, peer.UserID, peer.PeerID); ok {
		delete(tx.data.peers, existing.ID)
	}

	return nil
}

func (tx *Tx) UpsertTransfer(transfer *types.Transfer) error {
	if err := tx.fail("UpsertTransfer"); err != nil {
		return err
	}

	row := *transfer

	for id, t := range tx.data.transfers {
		if t.UserID == transfer.UserID && t.TorrentID == transfer.TorrentID {
			row.ID = id
			row.CreatedAt = t.CreatedAt
		}
	}

	tx.data.transfers[row.ID] = row

	return nil
}

func (tx *Tx) UpsertTorrent(torrent *types.Torrent) error {
	if err := tx.fail("UpsertTorrent"); err != nil {
		return err
	}

	tx.data.torrents[torrent.ID] = *torrent

	return nil
}

func (tx *Tx) UpsertUser(user *types.User) error {
	if err := tx.fail("UpsertUser"); err != nil {
		return err
	}

	tx.data.users[user.ID] = *user

	return nil
}

func (tx *Tx) PeersForTorrent(torrentID uuid.UUID, seeder bool, limit int) ([]types.Peer, error) {
	if err := tx.fail("PeersForTorrent"); err != nil {
		return nil, err
	}

	peers := make([]types.Peer, 0, limit)

	for _, p := range tx.data.peers {
		if p.TorrentID == torrentID && p.Seeder == seeder {
			peers = append(peers, p)
		}
	}

	slices.SortFunc(peers, func(a, b types.Peer) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}

		return bytes.Compare(a.ID[:], b.ID[:])
	})

	if len(peers) > limit {
		peers = peers[:limit]
	}

	return peers, nil
}

func (tx *Tx) CountsForTorrent(torrentID uuid.UUID) (types.Counts, error) {
	if err := tx.fail("CountsForTorrent"); err != nil {
		return types.Counts{}, err
	}

	return tx.data.counts(torrentID), nil
}

func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}

	if err := tx.store.fails["Commit"]; err != nil {
		return err
	}

	tx.done = true
	tx.store.data = tx.data
	tx.store.mu.Unlock()

	return nil
}

func (tx *Tx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}

	tx.done = true
	tx.store.mu.Unlock()

	return nil
}

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

// Package tracker reconciles announce and scrape requests against the swarm store
package tracker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"bitrack/database/types"

	"github.com/google/uuid"
)

// AnnounceRecord what a committed announce changed, handed to the Observer
type AnnounceRecord struct {
	TorrentID uuid.UUID
	UserID    uuid.UUID

	IP   netip.Addr
	Port uint16

	Event  Event
	Seeder bool

	DeltaUploaded   int64
	DeltaDownloaded int64
	DeltaSeedTime   int64

	Uploaded   uint64
	Downloaded uint64
	Left       uint64
}

type Observer interface {
	Announced(rec *AnnounceRecord)
}

type Tracker struct {
	store  Store
	config Config

	// Clock defaults to time.Now
	Clock func() time.Time

	// Observer is optional
	Observer Observer
}

func New(store Store, config Config) *Tracker {
	return &Tracker{
		store:  store,
		config: config,
		Clock:  time.Now,
	}
}

func (t *Tracker) Config() Config {
	return t.config
}

// Announce runs the whole reconcile and persist sequence for one request inside one store transaction.
// Nothing is retried; a store failure is returned as *StorageError.
func (t *Tracker) Announce(ctx context.Context, req *AnnounceRequest) (resp *AnnounceResponse, err error) {
	now := t.Clock().UTC()

	tx, err := t.store.Begin(ctx)
	if err != nil {
		return nil, storageError("begin", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Warn("rollback failed", "err", rbErr)
			}
		}
	}()

	user, err := tx.UserByPasscode(req.Passcode)
	if err != nil {
		return nil, storageError("find user", err)
	} else if user == nil {
		return nil, ErrInvalidPasscode
	}

	torrent, err := tx.TorrentByInfoHash(req.InfoHash)
	if err != nil {
		return nil, storageError("find torrent", err)
	} else if torrent == nil {
		return nil, ErrInvalidInfoHash
	}

	peer, err := tx.PeerForAnnounce(torrent.ID, user.ID, req.PeerID)
	if err != nil {
		return nil, storageError("find peer", err)
	}

	var deltaUp, deltaDown, deltaSeedTime int64

	newPeer := peer == nil

	if newPeer {
		peer = newPeerFromRequest(req, torrent.ID, user.ID, now)
	} else {
		deltaUp = int64(req.Uploaded) - peer.BytesUploaded
		deltaDown = int64(req.Downloaded) - peer.BytesDownloaded

		if peer.Seeder {
			deltaSeedTime = int64(now.Sub(peer.UpdatedAt) / time.Second)
		}

		peer.BytesUploaded = int64(req.Uploaded)
		peer.BytesDownloaded = int64(req.Downloaded)
		peer.BytesLeft = int64(req.Left)

		if req.Event == EventCompleted {
			peer.Seeder = true
		}

		peer.CryptoEnabled = req.CryptoAware()
		peer.UpdatedAt = now
	}

	transfer, err := tx.TransferForAnnounce(user.ID, torrent.ID)
	if err != nil {
		return nil, storageError("find transfer", err)
	}

	if transfer == nil {
		if transfer, err = types.NewTransferFromPeer(peer, now); err != nil {
			return nil, storageError("derive transfer", err)
		}
	} else {
		transfer.Accrue(deltaUp, deltaDown, deltaSeedTime, now)
	}

	user.Uploaded += deltaUp
	user.Downloaded += deltaDown

	torrent.LastAction = &now
	torrent.Visible = true

	switch req.Event {
	case EventCompleted:
		torrent.Completed++
		torrent.LastSeeder = &now
		transfer.CompletedAt = &now

		if err = tx.UpsertPeer(peer); err != nil {
			return nil, storageError("save peer", err)
		}
	case EventStopped:
		if !newPeer {
			if err = tx.DeletePeer(peer); err != nil {
				return nil, storageError("delete peer", err)
			}
		}

		if peer.Seeder {
			torrent.LastSeeder = &now
		}
	default:
		if peer.Seeder {
			torrent.LastSeeder = &now
		}

		if err = tx.UpsertPeer(peer); err != nil {
			return nil, storageError("save peer", err)
		}
	}

	if err = tx.UpsertTorrent(torrent); err != nil {
		return nil, storageError("save torrent", err)
	}

	if err = tx.UpsertUser(user); err != nil {
		return nil, storageError("save user", err)
	}

	if err = tx.UpsertTransfer(transfer); err != nil {
		return nil, storageError("save transfer", err)
	}

	peers, err := selectPeers(tx, torrent.ID, !peer.Seeder, int(req.NumWant))
	if err != nil {
		return nil, storageError("select peers", err)
	}

	if !req.CryptoAware() {
		for i := range peers {
			peers[i].CryptoEnabled = false
		}
	}

	counts, err := tx.CountsForTorrent(torrent.ID)
	if err != nil {
		return nil, storageError("count peers", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, storageError("commit", err)
	}

	if t.Observer != nil {
		t.Observer.Announced(&AnnounceRecord{
			TorrentID:       torrent.ID,
			UserID:          user.ID,
			IP:              req.IP,
			Port:            req.Port,
			Event:           req.Event,
			Seeder:          peer.Seeder,
			DeltaUploaded:   deltaUp,
			DeltaDownloaded: deltaDown,
			DeltaSeedTime:   deltaSeedTime,
			Uploaded:        req.Uploaded,
			Downloaded:      req.Downloaded,
			Left:            req.Left,
		})
	}

	return &AnnounceResponse{
		Interval:    t.config.Interval,
		TrackerID:   req.TrackerID,
		Complete:    counts.Seeders,
		Incomplete:  counts.Leechers,
		Peers:       peers,
		Compact:     req.Compact,
		NoPeerID:    req.NoPeerID,
		CryptoFlags: req.CryptoAware(),
	}, nil
}

// newPeerFromRequest byte counters start at zero so the next announce credits the full reported totals
func newPeerFromRequest(req *AnnounceRequest, torrentID, userID uuid.UUID, now time.Time) *types.Peer {
	peer := &types.Peer{
		ID:            uuid.New(),
		TorrentID:     torrentID,
		UserID:        userID,
		IPAddress:     req.IP,
		Port:          req.Port,
		BytesLeft:     int64(req.Left),
		Seeder:        req.Left == 0,
		PeerID:        bytes.Clone(req.PeerID),
		UserAgent:     req.UserAgent,
		CryptoEnabled: req.CryptoAware(),
		CryptoPort:    req.CryptoPort,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if peer.Seeder {
		finishedAt := now
		peer.FinishedAt = &finishedAt
	}

	return peer
}

// selectPeers fills up to numWant with peers of the wanted role first, then with peers of the other role
func selectPeers(tx Tx, torrentID uuid.UUID, want bool, numWant int) ([]types.Peer, error) {
	if numWant <= 0 {
		return nil, nil
	}

	peers, err := tx.PeersForTorrent(torrentID, want, numWant)
	if err != nil {
		return nil, err
	}

	if rest := numWant - len(peers); rest > 0 {
		more, err := tx.PeersForTorrent(torrentID, !want, rest)
		if err != nil {
			return nil, err
		}

		peers = append(peers, more...)
	}

	return peers, nil
}

// Scrape returns one entry per distinct info hash; unknown torrents count as empty swarms
func (t *Tracker) Scrape(ctx context.Context, req *ScrapeRequest) (*ScrapeResponse, error) {
	if len(req.InfoHashes) == 0 {
		return nil, ErrNoInfoHashes
	}

	resp := &ScrapeResponse{
		Files:       make([]ScrapeFile, 0, len(req.InfoHashes)),
		MinInterval: t.config.Interval,
	}

	seen := make(map[string]struct{}, len(req.InfoHashes))

	for _, infoHash := range req.InfoHashes {
		if _, dup := seen[string(infoHash)]; dup {
			continue
		}

		seen[string(infoHash)] = struct{}{}

		counts, err := t.store.ScrapeCounts(ctx, infoHash)
		if err != nil {
			return nil, storageError("scrape counts", err)
		}

		resp.Files = append(resp.Files, ScrapeFile{
			InfoHash:   infoHash,
			Complete:   counts.Seeders,
			Incomplete: counts.Leechers,
			Downloaded: counts.Completed,
		})
	}

	return resp, nil
}

// FailureReason message placed in the bencoded failure dictionary
func FailureReason(err error) string {
	var storage *StorageError

	if errors.As(err, &storage) {
		return "storage failure: " + storage.Error()
	}

	return err.Error()
}

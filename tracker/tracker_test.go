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

package tracker_test

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"bitrack/database/types"
	"bitrack/tracker"
	"bitrack/tracker/trackertest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var (
	passcode = []byte{0xde, 0xad, 0xbe, 0xef}
	infoHash = types.TorrentHash{'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A', 'A'}
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type recorder struct {
	records []tracker.AnnounceRecord
}

func (r *recorder) Announced(rec *tracker.AnnounceRecord) {
	r.records = append(r.records, *rec)
}

type fixture struct {
	store   *trackertest.Store
	tracker *tracker.Tracker
	clock   *clock
	user    types.User
	torrent types.Torrent
}

func newFixture() *fixture {
	store := trackertest.New()
	c := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	tr := tracker.New(store, tracker.Config{Interval: 900, DefaultNumWant: 50})
	tr.Clock = c.Now

	return &fixture{
		store:   store,
		tracker: tr,
		clock:   c,
		user:    store.AddUser(passcode),
		torrent: store.AddTorrent(infoHash),
	}
}

func announceRequest(peerID string, event tracker.Event, uploaded, downloaded, left uint64) *tracker.AnnounceRequest {
	return &tracker.AnnounceRequest{
		Passcode:   passcode,
		InfoHash:   infoHash[:],
		PeerID:     []byte(peerID),
		IP:         netip.MustParseAddr("10.0.0.1"),
		Port:       6881,
		UserAgent:  "test/1.0",
		Uploaded:   uploaded,
		Downloaded: downloaded,
		Left:       left,
		Event:      event,
		NumWant:    50,
	}
}

func TestAnnounceNewSeeder(t *testing.T) {
	f := newFixture()

	resp, err := f.tracker.Announce(context.Background(), announceRequest("-TR0001-000000000001", tracker.EventStarted, 0, 0, 0))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	peers := f.store.Peers(f.torrent.ID)
	if len(peers) != 1 {
		t.Fatalf("Expected 1 peer, got %d", len(peers))
	}

	if !peers[0].Seeder || peers[0].FinishedAt == nil || !peers[0].FinishedAt.Equal(f.clock.now) {
		t.Fatalf("Expected seeder with finished_at, got %+v", peers[0])
	}

	transfer, ok := f.store.Transfer(f.user.ID, f.torrent.ID)
	if !ok || f.store.TransferCount() != 1 {
		t.Fatalf("Expected exactly one transfer")
	}

	if transfer.BytesUploaded != 0 || transfer.BytesDownloaded != 0 || transfer.TimeSeeded != 0 {
		t.Fatalf("Expected zero transfer counters, got %+v", transfer)
	}

	if transfer.CompletedAt == nil {
		t.Fatalf("Expected transfer completed_at to be set")
	}

	torrent := f.store.Torrent(f.torrent.ID)
	if !torrent.Visible || torrent.LastAction == nil || torrent.LastSeeder == nil {
		t.Fatalf("Expected visible torrent with last action and last seeder, got %+v", torrent)
	}

	if resp.Complete != 1 || resp.Incomplete != 0 || resp.Interval != 900 {
		t.Fatalf("Unexpected response counters: %+v", resp)
	}

	if len(resp.Peers) != 1 || string(resp.Peers[0].PeerID) != "-TR0001-000000000001" {
		t.Fatalf("Expected the announcing peer in the peer list, got %+v", resp.Peers)
	}
}

func TestAnnounceStoppedUnknownPeer(t *testing.T) {
	f := newFixture()

	f.store.AddPeer(types.Peer{
		ID:        uuid.New(),
		TorrentID: f.torrent.ID,
		UserID:    uuid.New(),
		IPAddress: netip.MustParseAddr("10.0.0.2"),
		Port:      1337,
		PeerID:    []byte("-TR0001-someoneelse0"),
		BytesLeft: 10,
		UpdatedAt: f.clock.now,
	})

	resp, err := f.tracker.Announce(context.Background(), announceRequest("-TR0001-000000000001", tracker.EventStopped, 0, 0, 10))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if peers := f.store.Peers(f.torrent.ID); len(peers) != 1 || string(peers[0].PeerID) != "-TR0001-someoneelse0" {
		t.Fatalf("Expected stopped event on unknown peer to leave peers untouched, got %+v", peers)
	}

	if resp.Complete != 0 || resp.Incomplete != 1 {
		t.Fatalf("Expected current counts 0/1, got %d/%d", resp.Complete, resp.Incomplete)
	}
}

func TestAnnounceAccumulatesDeltas(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	steps := []struct {
		event      tracker.Event
		uploaded   uint64
		downloaded uint64
	}{
		{tracker.EventStarted, 0, 0},
		{tracker.EventNone, 100, 400},
		{tracker.EventNone, 250, 1000},
	}

	for _, step := range steps {
		if _, err := f.tracker.Announce(ctx, announceRequest("peer", step.event, step.uploaded, step.downloaded, 5000)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		f.clock.Advance(time.Minute)
	}

	user := f.store.User(f.user.ID)
	if user.Uploaded != 250 || user.Downloaded != 1000 {
		t.Fatalf("Expected user totals 250/1000, got %d/%d", user.Uploaded, user.Downloaded)
	}

	transfer, _ := f.store.Transfer(f.user.ID, f.torrent.ID)
	if transfer.BytesUploaded != 250 || transfer.BytesDownloaded != 1000 {
		t.Fatalf("Expected transfer totals 250/1000, got %d/%d", transfer.BytesUploaded, transfer.BytesDownloaded)
	}

	if transfer.TimeSeeded != 0 {
		t.Fatalf("Expected no seed time for a leecher, got %d", transfer.TimeSeeded)
	}

	// client restart with smaller totals is passed through
	if _, err := f.tracker.Announce(ctx, announceRequest("peer", tracker.EventNone, 50, 1000, 5000)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if user = f.store.User(f.user.ID); user.Uploaded != 50 {
		t.Fatalf("Expected negative delta to reduce uploaded to 50, got %d", user.Uploaded)
	}
}

func TestAnnounceCompletedAndSeedTime(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.tracker.Announce(ctx, announceRequest("peer", tracker.EventStarted, 0, 0, 100)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	f.clock.Advance(time.Minute)

	if _, err := f.tracker.Announce(ctx, announceRequest("peer", tracker.EventCompleted, 0, 100, 0)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	completedAt := f.clock.now

	torrent := f.store.Torrent(f.torrent.ID)
	if torrent.Completed != 1 || torrent.LastSeeder == nil || !torrent.LastSeeder.Equal(completedAt) {
		t.Fatalf("Expected one completion with last seeder %s, got %+v", completedAt, torrent)
	}

	transfer, _ := f.store.Transfer(f.user.ID, f.torrent.ID)
	if transfer.CompletedAt == nil || !transfer.CompletedAt.Equal(completedAt) {
		t.Fatalf("Expected transfer completed_at %s, got %v", completedAt, transfer.CompletedAt)
	}

	if peers := f.store.Peers(f.torrent.ID); len(peers) != 1 || !peers[0].Seeder {
		t.Fatalf("Expected one seeding peer, got %+v", peers)
	}

	f.clock.Advance(90 * time.Second)

	if _, err := f.tracker.Announce(ctx, announceRequest("peer", tracker.EventNone, 10, 100, 0)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if transfer, _ = f.store.Transfer(f.user.ID, f.torrent.ID); transfer.TimeSeeded != 90 {
		t.Fatalf("Expected 90 seconds seeded, got %d", transfer.TimeSeeded)
	}

	f.clock.Advance(30 * time.Second)

	if _, err := f.tracker.Announce(ctx, announceRequest("peer", tracker.EventStopped, 10, 100, 0)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if peers := f.store.Peers(f.torrent.ID); len(peers) != 0 {
		t.Fatalf("Expected stopped peer to be deleted, got %+v", peers)
	}

	if torrent = f.store.Torrent(f.torrent.ID); !torrent.LastSeeder.Equal(f.clock.now) {
		t.Fatalf("Expected last seeder %s after stopping seeder, got %s", f.clock.now, torrent.LastSeeder)
	}

	if transfer, _ = f.store.Transfer(f.user.ID, f.torrent.ID); transfer.TimeSeeded != 120 {
		t.Fatalf("Expected 120 seconds seeded, got %d", transfer.TimeSeeded)
	}
}

func TestAnnounceInvalidCredentials(t *testing.T) {
	f := newFixture()

	req := announceRequest("peer", tracker.EventStarted, 0, 0, 0)
	req.Passcode = []byte("nope")

	if _, err := f.tracker.Announce(context.Background(), req); !errors.Is(err, tracker.ErrInvalidPasscode) {
		t.Fatalf("Expected %v, got %v", tracker.ErrInvalidPasscode, err)
	}

	req = announceRequest("peer", tracker.EventStarted, 0, 0, 0)
	req.InfoHash = []byte("BBBBBBBBBBBBBBBBBBBB")

	if _, err := f.tracker.Announce(context.Background(), req); !errors.Is(err, tracker.ErrInvalidInfoHash) {
		t.Fatalf("Expected %v, got %v", tracker.ErrInvalidInfoHash, err)
	}

	if f.store.TransferCount() != 0 || len(f.store.Peers(f.torrent.ID)) != 0 {
		t.Fatalf("Expected rejected announces to leave the store untouched")
	}
}

func TestAnnouncePeerSelection(t *testing.T) {
	f := newFixture()
	cryptoPort := uint16(31337)

	var seeders, leechers []types.Peer

	for i := 0; i < 3; i++ {
		p := types.Peer{
			ID:            uuid.New(),
			TorrentID:     f.torrent.ID,
			UserID:        uuid.New(),
			IPAddress:     netip.AddrFrom4([4]byte{10, 0, 1, byte(i)}),
			Port:          1000,
			Seeder:        true,
			PeerID:        []byte{'s', byte('0' + i)},
			CryptoEnabled: true,
			CryptoPort:    &cryptoPort,
			UpdatedAt:     f.clock.now.Add(-time.Duration(i) * time.Minute),
		}
		seeders = append(seeders, p)
		f.store.AddPeer(p)

		p.ID = uuid.New()
		p.Seeder = false
		p.PeerID = []byte{'l', byte('0' + i)}
		leechers = append(leechers, p)
		f.store.AddPeer(p)
	}

	f.clock.Advance(time.Second)

	req := announceRequest("me", tracker.EventStarted, 0, 0, 100)
	req.NumWant = 5

	resp, err := f.tracker.Announce(context.Background(), req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var got []string
	for _, p := range resp.Peers {
		got = append(got, string(p.PeerID))

		if p.CryptoEnabled {
			t.Fatalf("Expected crypto to be cleared for a client without crypto support")
		}
	}

	// leecher wants seeders first, then other leechers (itself included) most recent first
	expected := []string{"s0", "s1", "s2", "me", "l0"}
	if !cmp.Equal(expected, got) {
		t.Fatalf("Peer selection mismatch: %s", cmp.Diff(expected, got))
	}

	if resp.Complete != 3 || resp.Incomplete != 4 {
		t.Fatalf("Expected counts 3/4, got %d/%d", resp.Complete, resp.Incomplete)
	}

	req = announceRequest("me", tracker.EventNone, 0, 0, 100)
	req.NumWant = 2
	req.SupportCrypto = true

	if resp, err = f.tracker.Announce(context.Background(), req); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(resp.Peers) != 2 || !resp.Peers[0].CryptoEnabled || !resp.CryptoFlags {
		t.Fatalf("Expected 2 crypto enabled peers with crypto flags, got %+v", resp)
	}

	req.NumWant = 0

	if resp, err = f.tracker.Announce(context.Background(), req); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(resp.Peers) != 0 {
		t.Fatalf("Expected no peers for numwant=0, got %d", len(resp.Peers))
	}
}

func TestAnnounceStorageFailure(t *testing.T) {
	f := newFixture()
	boom := errors.New("boom")

	f.store.FailOn("UpsertUser", boom)

	_, err := f.tracker.Announce(context.Background(), announceRequest("peer", tracker.EventStarted, 0, 0, 0))
	if !errors.Is(err, boom) || !tracker.IsStorage(err) {
		t.Fatalf("Expected storage error wrapping %v, got %v", boom, err)
	}

	if reason := tracker.FailureReason(err); reason != "storage failure: save user: boom" {
		t.Fatalf("Unexpected failure reason %q", reason)
	}

	if len(f.store.Peers(f.torrent.ID)) != 0 || f.store.TransferCount() != 0 || f.store.Torrent(f.torrent.ID).Visible {
		t.Fatalf("Expected failed announce to be rolled back")
	}

	f.store.FailOn("UpsertUser", nil)

	if _, err = f.tracker.Announce(context.Background(), announceRequest("peer", tracker.EventStarted, 0, 0, 0)); err != nil {
		t.Fatalf("Expected store to be usable after rollback, got %v", err)
	}
}

func TestAnnounceObserver(t *testing.T) {
	f := newFixture()
	rec := &recorder{}
	f.tracker.Observer = rec

	ctx := context.Background()

	_, _ = f.tracker.Announce(ctx, announceRequest("peer", tracker.EventStarted, 0, 0, 10))
	_, _ = f.tracker.Announce(ctx, announceRequest("peer", tracker.EventNone, 30, 20, 10))

	if len(rec.records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(rec.records))
	}

	last := rec.records[1]
	if last.DeltaUploaded != 30 || last.DeltaDownloaded != 20 || last.UserID != f.user.ID || last.TorrentID != f.torrent.ID {
		t.Fatalf("Unexpected record %+v", last)
	}
}

func TestScrape(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, _ = f.tracker.Announce(ctx, announceRequest("seeder", tracker.EventCompleted, 0, 0, 0))
	_, _ = f.tracker.Announce(ctx, announceRequest("leecher", tracker.EventStarted, 0, 0, 10))

	missing := []byte("NNNNNNNNNNNNNNNNNNNN")

	resp, err := f.tracker.Scrape(ctx, &tracker.ScrapeRequest{InfoHashes: [][]byte{infoHash[:], missing, infoHash[:]}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := &tracker.ScrapeResponse{
		Files: []tracker.ScrapeFile{
			{InfoHash: infoHash[:], Complete: 1, Incomplete: 1, Downloaded: 1},
			{InfoHash: missing},
		},
		MinInterval: 900,
	}

	if !cmp.Equal(expected, resp) {
		t.Fatalf("Scrape mismatch: %s", cmp.Diff(expected, resp))
	}

	if _, err = f.tracker.Scrape(ctx, &tracker.ScrapeRequest{}); !errors.Is(err, tracker.ErrNoInfoHashes) {
		t.Fatalf("Expected %v, got %v", tracker.ErrNoInfoHashes, err)
	}
}

func TestParseEvent(t *testing.T) {
	testCases := []struct {
		in    string
		event tracker.Event
		ok    bool
	}{
		{"", tracker.EventNone, true},
		{"empty", tracker.EventNone, true},
		{"started", tracker.EventStarted, true},
		{"stopped", tracker.EventStopped, true},
		{"completed", tracker.EventCompleted, true},
		{"paused", tracker.EventNone, false},
	}

	for _, testCase := range testCases {
		event, ok := tracker.ParseEvent(testCase.in)
		if event != testCase.event || ok != testCase.ok {
			t.Fatalf("Expected (%s, %t) for %q, got (%s, %t)", testCase.event, testCase.ok, testCase.in, event, ok)
		}
	}
}

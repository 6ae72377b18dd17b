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
	"net/netip"

	"bitrack/database/types"
)

type Event uint8

const (
	EventNone Event = iota
	EventStarted
	EventStopped
	EventCompleted
)

var eventNames = [...]string{
	EventNone:      "none",
	EventStarted:   "started",
	EventStopped:   "stopped",
	EventCompleted: "completed",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}

	return "unknown"
}

// ParseEvent accepts the empty string and "empty" as EventNone
func ParseEvent(s string) (Event, bool) {
	switch s {
	case "", "empty":
		return EventNone, true
	case "started":
		return EventStarted, true
	case "stopped":
		return EventStopped, true
	case "completed":
		return EventCompleted, true
	}

	return EventNone, false
}

// Config values consumed by the announce and scrape handlers, read once at startup
type Config struct {
	AnnounceURL    string
	Comment        string
	DefaultNumWant uint16
	Interval       uint32 // seconds
}

type AnnounceRequest struct {
	Passcode []byte
	InfoHash []byte
	PeerID   []byte

	IP        netip.Addr
	Port      uint16
	UserAgent string

	Uploaded   uint64
	Downloaded uint64
	Left       uint64

	Compact  bool
	NoPeerID bool
	Event    Event
	NumWant  uint16

	Key       []byte
	TrackerID []byte

	SupportCrypto bool
	RequireCrypto bool
	CryptoPort    *uint16
}

// CryptoAware is true when the client declared any message stream encryption support
func (r *AnnounceRequest) CryptoAware() bool {
	return r.SupportCrypto || r.RequireCrypto
}

type AnnounceResponse struct {
	Interval    uint32
	MinInterval *uint32

	WarningMessage string
	TrackerID      []byte

	Complete   int64
	Incomplete int64

	Peers []types.Peer

	Compact     bool
	NoPeerID    bool
	CryptoFlags bool
}

type ScrapeRequest struct {
	InfoHashes [][]byte
}

type ScrapeFile struct {
	InfoHash   []byte
	Complete   int64
	Incomplete int64
	Downloaded int64
}

type ScrapeResponse struct {
	Files       []ScrapeFile
	MinInterval uint32
}

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
	"encoding/binary"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// CompactPeerSize 4 bytes of IPv4 address followed by 2 bytes of port, both big endian
const CompactPeerSize = 4 + 2

// Peer One client's live presence in one torrent's swarm.
// At most one row exists per (TorrentID, UserID, PeerID).
type Peer struct {
	ID        uuid.UUID
	TorrentID uuid.UUID
	UserID    uuid.UUID

	IPAddress netip.Addr
	Port      uint16

	BytesUploaded   int64
	BytesDownloaded int64
	BytesLeft       int64

	Seeder bool

	PeerID    []byte // opaque, chosen by client
	UserAgent string

	CryptoEnabled bool
	CryptoPort    *uint16

	// Baselines for ratio resets, persisted but not consulted on announce
	OffsetUploaded   int64
	OffsetDownloaded int64

	CreatedAt  time.Time
	FinishedAt *time.Time
	UpdatedAt  time.Time
}

// AnnouncePort is the port other clients should connect to
func (p *Peer) AnnouncePort() uint16 {
	if p.CryptoEnabled && p.CryptoPort != nil {
		return *p.CryptoPort
	}

	return p.Port
}

func (p *Peer) IsIPv4() bool {
	return p.IPAddress.Unmap().Is4()
}

// AppendCompact appends the 6 byte compact form. Caller must check IsIPv4 first.
func (p *Peer) AppendCompact(buf []byte) []byte {
	ip := p.IPAddress.Unmap().As4()

	buf = append(buf, ip[:]...)

	return binary.BigEndian.AppendUint16(buf, p.AnnouncePort())
}

// IPString is the textual address without IPv4-in-IPv6 mapping
func (p *Peer) IPString() string {
	return p.IPAddress.Unmap().String()
}

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

package util

import (
	"bytes"
	"slices"
	"strconv"

	"bitrack/database/types"
	"bitrack/tracker"
)

func bencodeWriteInt64[T ~int64 | ~int | ~uint32 | ~uint16](buf *bytes.Buffer, v T) {
	// Static allocation, length of max int64
	var lenBuf [20]byte

	buf.Write(strconv.AppendInt(lenBuf[:0], int64(v), 10))
}

func bencodeWriteString[T ~string | ~[]byte](buf *bytes.Buffer, v T) {
	bencodeWriteInt64(buf, len(v))
	buf.WriteByte(':')
	buf.Write([]byte(v))
}

func bencodeWriteNumber[T ~int64 | ~int | ~uint32 | ~uint16](buf *bytes.Buffer, v T) {
	buf.WriteByte('i')
	bencodeWriteInt64(buf, v)
	buf.WriteByte('e')
}

// BencodeFailure the failure dictionary carries no other key
func BencodeFailure(buf *bytes.Buffer, reason string) {
	buf.WriteByte('d')

	bencodeWriteString(buf, "failure reason")
	bencodeWriteString(buf, reason)

	buf.WriteByte('e')
}

// CompactPossible compact encoding is IPv4 only
func CompactPossible(peers []types.Peer) bool {
	for i := range peers {
		if !peers[i].IsIPv4() {
			return false
		}
	}

	return true
}

// BencodeAnnounce writes the announce dictionary, keys in sorted order.
// Compact mode is dropped for the whole list as soon as one peer is not IPv4.
func BencodeAnnounce(buf *bytes.Buffer, resp *tracker.AnnounceResponse) {
	compact := resp.Compact && CompactPossible(resp.Peers)

	buf.WriteByte('d')

	bencodeWriteString(buf, "complete")
	bencodeWriteNumber(buf, resp.Complete)

	if resp.CryptoFlags {
		bencodeWriteString(buf, "crypto_flags")
		bencodeWriteInt64(buf, len(resp.Peers))
		buf.WriteByte(':')

		for i := range resp.Peers {
			buf.WriteString(Btoa(resp.Peers[i].CryptoEnabled))
		}
	}

	bencodeWriteString(buf, "incomplete")
	bencodeWriteNumber(buf, resp.Incomplete)

	bencodeWriteString(buf, "interval")
	bencodeWriteNumber(buf, resp.Interval)

	if resp.MinInterval != nil {
		bencodeWriteString(buf, "min interval")
		bencodeWriteNumber(buf, *resp.MinInterval)
	}

	bencodeAnnouncePeers(buf, resp.Peers, compact, !resp.NoPeerID)

	if resp.TrackerID != nil {
		bencodeWriteString(buf, "tracker id")
		bencodeWriteString(buf, resp.TrackerID)
	}

	if resp.WarningMessage != "" {
		bencodeWriteString(buf, "warning message")
		bencodeWriteString(buf, resp.WarningMessage)
	}

	buf.WriteByte('e')
}

func bencodeAnnouncePeers(buf *bytes.Buffer, peers []types.Peer, compact, peerID bool) {
	bencodeWriteString(buf, "peers")

	if compact {
		bencodeWriteInt64(buf, len(peers)*types.CompactPeerSize)
		buf.WriteByte(':')

		var peerBuf [types.CompactPeerSize]byte

		for i := range peers {
			buf.Write(peers[i].AppendCompact(peerBuf[:0]))
		}

		return
	}

	buf.WriteByte('l')

	for i := range peers {
		peer := &peers[i]

		buf.WriteByte('d')

		bencodeWriteString(buf, "ip")
		bencodeWriteString(buf, peer.IPString())

		if peerID {
			bencodeWriteString(buf, "peer id")
			bencodeWriteString(buf, peer.PeerID)
		}

		bencodeWriteString(buf, "port")
		bencodeWriteNumber(buf, peer.AnnouncePort())

		buf.WriteByte('e')
	}

	buf.WriteByte('e')
}

// BencodeScrape files are keyed by raw info hash bytes, sorted bytewise
func BencodeScrape(buf *bytes.Buffer, resp *tracker.ScrapeResponse) {
	files := slices.Clone(resp.Files)

	slices.SortFunc(files, func(a, b tracker.ScrapeFile) int {
		return bytes.Compare(a.InfoHash, b.InfoHash)
	})

	buf.WriteByte('d')

	bencodeWriteString(buf, "files")

	buf.WriteByte('d')

	for i := range files {
		file := &files[i]

		bencodeWriteString(buf, file.InfoHash)

		buf.WriteByte('d')

		bencodeWriteString(buf, "complete")
		bencodeWriteNumber(buf, file.Complete)

		bencodeWriteString(buf, "downloaded")
		bencodeWriteNumber(buf, file.Downloaded)

		bencodeWriteString(buf, "incomplete")
		bencodeWriteNumber(buf, file.Incomplete)

		buf.WriteByte('e')
	}

	buf.WriteByte('e')

	bencodeWriteString(buf, "flags")

	buf.WriteByte('d')

	bencodeWriteString(buf, "min interval")
	bencodeWriteNumber(buf, resp.MinInterval)

	buf.WriteByte('e')

	buf.WriteByte('e')
}

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

package params

import (
	"encoding/hex"
	"net/netip"

	"bitrack/tracker"
)

// NewAnnounceRequest builds a typed announce from parsed query values and transport supplied fields
func NewAnnounceRequest(qp *QueryParam, passcodeHex string, ip netip.Addr, userAgent string,
	defaultNumWant uint16) (*tracker.AnnounceRequest, error) {
	passcode, err := hex.DecodeString(passcodeHex)
	if err != nil || len(passcode) == 0 {
		return nil, tracker.Malformed("invalid passcode encoding")
	}

	if !ip.IsValid() || ip.IsUnspecified() {
		return nil, tracker.Malformed("could not get ip address")
	}

	if userAgent == "" {
		return nil, tracker.Malformed("user agent header not found")
	}

	infoHashes := qp.InfoHashes()
	if len(infoHashes) == 0 {
		return nil, tracker.Malformed("info_hash not in query")
	} else if len(infoHashes) > 1 {
		return nil, tracker.Malformed("more than one info_hash in query")
	}

	peerID, exists := qp.Get("peer_id")
	if !exists {
		return nil, tracker.Malformed("peer_id not in query")
	}

	req := &tracker.AnnounceRequest{
		Passcode:      passcode,
		InfoHash:      infoHashes[0],
		PeerID:        peerID,
		IP:            ip.Unmap(),
		UserAgent:     userAgent,
		Compact:       qp.GetBool("compact"),
		NoPeerID:      qp.GetBool("no_peer_id"),
		SupportCrypto: qp.GetBool("supportcrypto"),
		RequireCrypto: qp.GetBool("requirecrypto"),
		NumWant:       defaultNumWant,
	}

	if req.Port, exists = qp.GetUint16("port"); !exists {
		return nil, tracker.Malformed("port missing or invalid")
	}

	if req.Uploaded, exists = qp.GetUint64("uploaded"); !exists {
		return nil, tracker.Malformed("uploaded missing or invalid")
	}

	if req.Downloaded, exists = qp.GetUint64("downloaded"); !exists {
		return nil, tracker.Malformed("downloaded missing or invalid")
	}

	if req.Left, exists = qp.GetUint64("left"); !exists {
		return nil, tracker.Malformed("left missing or invalid")
	}

	event, _ := qp.GetString("event")
	if req.Event, exists = tracker.ParseEvent(event); !exists {
		return nil, tracker.Malformed("invalid event")
	}

	if qp.Has("numwant") {
		if req.NumWant, exists = qp.GetUint16("numwant"); !exists {
			return nil, tracker.Malformed("invalid numwant")
		}
	}

	if key, exists := qp.Get("key"); exists {
		req.Key = key
	}

	if trackerID, exists := qp.Get("trackerid"); exists {
		req.TrackerID = trackerID
	}

	if cryptoPort, exists := qp.GetUint16("cryptoport"); exists {
		req.CryptoPort = &cryptoPort
	}

	return req, nil
}

func NewScrapeRequest(qp *QueryParam) *tracker.ScrapeRequest {
	return &tracker.ScrapeRequest{InfoHashes: qp.InfoHashes()}
}

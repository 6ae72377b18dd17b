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
	"database/sql/driver"
	"encoding/hex"
	"errors"
)

// TorrentHashSize is the length of a SHA-1 digest
const TorrentHashSize = 20

// TorrentHash SHA-1 hash (20 bytes) of a bencoded info dictionary
type TorrentHash [TorrentHashSize]byte

var (
	errInvalidType          = errors.New("unexpected type")
	errWrongTorrentHashSize = errors.New("wrong torrent hash size")
)

// TorrentHashFromBytes returns false when b is not exactly TorrentHashSize long
func TorrentHashFromBytes(b []byte) (h TorrentHash, ok bool) {
	if len(b) != TorrentHashSize {
		return h, false
	}

	copy(h[:], b)

	return h, true
}

//goland:noinspection GoMixedReceiverTypes
func (h *TorrentHash) Scan(src any) error {
	buf, ok := src.([]byte)
	if !ok {
		return errInvalidType
	}

	if len(buf) != TorrentHashSize {
		return errWrongTorrentHashSize
	}

	copy(h[:], buf)

	return nil
}

//goland:noinspection GoMixedReceiverTypes
func (h TorrentHash) Value() (driver.Value, error) {
	return h[:], nil
}

//goland:noinspection GoMixedReceiverTypes
func (h TorrentHash) MarshalText() ([]byte, error) {
	var buf [TorrentHashSize * 2]byte

	hex.Encode(buf[:], h[:])

	return buf[:], nil
}

//goland:noinspection GoMixedReceiverTypes
func (h *TorrentHash) UnmarshalText(b []byte) error {
	if len(b) != TorrentHashSize*2 {
		return errWrongTorrentHashSize
	}

	if _, err := hex.Decode(h[:], b); err != nil {
		return err
	}

	return nil
}

//goland:noinspection GoMixedReceiverTypes
func (h TorrentHash) String() string {
	return hex.EncodeToString(h[:])
}

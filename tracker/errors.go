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
	"errors"
)

var (
	ErrInvalidPasscode = errors.New("invalid passcode")
	ErrInvalidInfoHash = errors.New("invalid info hash")
	ErrNoInfoHashes    = errors.New("no info hashes")
)

// MalformedRequestError a required field is missing or could not be parsed. Never reaches storage.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return "malformed request: " + e.Reason
}

// Malformed shorthand for building a *MalformedRequestError
func Malformed(reason string) error {
	return &MalformedRequestError{Reason: reason}
}

// StorageError wraps any failure of the store during reconcile and persist
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsMalformed reports whether err was caused by client input rather than by the tracker
func IsMalformed(err error) bool {
	var malformed *MalformedRequestError

	return errors.As(err, &malformed)
}

// IsStorage reports whether err originated in the store
func IsStorage(err error) bool {
	var storage *StorageError

	return errors.As(err, &storage)
}

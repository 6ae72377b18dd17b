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

// Package metainfo reads and rewrites bencoded .torrent files
package metainfo

import (
	"crypto/sha1" //nolint:gosec
	"errors"
	"fmt"
	"strings"

	"bitrack/database/types"

	"github.com/zeebo/bencode"
)

var (
	ErrNotDictionary = errors.New("metainfo is not a dictionary")
	ErrNoInfo        = errors.New("info not found")
)

// File single entry of a torrent's file list; Path components are joined with '/'
type File struct {
	Path string
	Size int64
}

// Metainfo summary of a .torrent file
type Metainfo struct {
	InfoHash types.TorrentHash
	Name     string
	Files    []File
}

// TotalSize sum of all file sizes
func (m *Metainfo) TotalSize() (size int64) {
	for _, f := range m.Files {
		size += f.Size
	}

	return size
}

type rawMetainfo struct {
	Info bencode.RawMessage `bencode:"info"`
}

func decodeInfo(data []byte) (bencode.RawMessage, error) {
	if len(data) == 0 || data[0] != 'd' {
		return nil, ErrNotDictionary
	}

	var raw rawMetainfo

	if err := bencode.DecodeBytes(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding metainfo: %w", err)
	}

	if len(raw.Info) == 0 {
		return nil, ErrNoInfo
	}

	return raw.Info, nil
}

// InfoHash SHA-1 of the exact bytes of the info dictionary as they appear in data
func InfoHash(data []byte) (h types.TorrentHash, err error) {
	info, err := decodeInfo(data)
	if err != nil {
		return h, err
	}

	return sha1.Sum(info), nil //nolint:gosec
}

// Files returns one entry in single-file mode, else one per item of info.files
func Files(data []byte) ([]File, error) {
	_, files, err := nameAndFiles(data)

	return files, err
}

// Parse computes info hash, name and file list in one go
func Parse(data []byte) (*Metainfo, error) {
	h, err := InfoHash(data)
	if err != nil {
		return nil, err
	}

	name, files, err := nameAndFiles(data)
	if err != nil {
		return nil, err
	}

	return &Metainfo{InfoHash: h, Name: name, Files: files}, nil
}

func nameAndFiles(data []byte) (string, []File, error) {
	raw, err := decodeInfo(data)
	if err != nil {
		return "", nil, err
	}

	var generic interface{}

	if err = bencode.DecodeBytes(raw, &generic); err != nil {
		return "", nil, fmt.Errorf("decoding info: %w", err)
	}

	info, ok := generic.(map[string]interface{})
	if !ok {
		return "", nil, errors.New("info is not a dictionary")
	}

	name, err := lookupString(info, "name", "info")
	if err != nil {
		return "", nil, err
	}

	list, multi := info["files"]
	if !multi {
		size, err := lookupInt(info, "length", "info")
		if err != nil {
			return "", nil, err
		}

		return name, []File{{Path: name, Size: size}}, nil
	}

	entries, ok := list.([]interface{})
	if !ok {
		return "", nil, errors.New("files is not a list")
	}

	files := make([]File, 0, len(entries))

	for _, entry := range entries {
		file, ok := entry.(map[string]interface{})
		if !ok {
			return "", nil, errors.New("file entry is not a dictionary")
		}

		size, err := lookupInt(file, "length", "file")
		if err != nil {
			return "", nil, err
		}

		components, ok := file["path"].([]interface{})
		if !ok {
			return "", nil, errors.New("path not found in file dictionary or not a list")
		}

		parts := make([]string, 0, len(components))

		for _, c := range components {
			s, ok := c.(string)
			if !ok {
				return "", nil, errors.New("path component is not a string")
			}

			parts = append(parts, s)
		}

		files = append(files, File{Path: strings.Join(parts, "/"), Size: size})
	}

	return name, files, nil
}

func lookupInt(dict map[string]interface{}, key, where string) (int64, error) {
	v, ok := dict[key]
	if !ok {
		return 0, fmt.Errorf("%s not found in %s dictionary", key, where)
	}

	i, ok := v.(int64)
	if !ok {
		return 0, fmt.Errorf("%s is not an integer", key)
	}

	return i, nil
}

func lookupString(dict map[string]interface{}, key, where string) (string, error) {
	v, ok := dict[key]
	if !ok {
		return "", fmt.Errorf("%s not found in %s dictionary", key, where)
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string", key)
	}

	return s, nil
}

// Rewrite sets announce and comment and drops announce-list. The info dictionary is carried over byte for byte.
func Rewrite(data []byte, announceURL, comment string) ([]byte, error) {
	info, err := decodeInfo(data)
	if err != nil {
		return nil, err
	}

	var root map[string]interface{}

	if err = bencode.DecodeBytes(data, &root); err != nil {
		return nil, fmt.Errorf("decoding metainfo: %w", err)
	}

	root["info"] = info
	root["announce"] = announceURL
	root["comment"] = comment

	delete(root, "announce-list")

	return bencode.EncodeBytes(root)
}

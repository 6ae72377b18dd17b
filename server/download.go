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

package server

import (
	"bytes"
	"encoding/hex"
	"errors"
	"log/slog"
	"mime"
	"strings"

	"bitrack/database"
	"bitrack/database/types"
	"bitrack/metainfo"

	"github.com/valyala/fasthttp"
)

// download serves {passcode}/{info_hash} as a .torrent announcing to the user's own URL
func (s *Server) download(ctx *fasthttp.RequestCtx, arg string, buf *bytes.Buffer) int {
	if s.metaFiles == nil {
		return fasthttp.StatusNotFound
	}

	passcodeHex, infoHashHex, ok := strings.Cut(arg, "/")
	if !ok || len(infoHashHex) != types.TorrentHashSize*2 {
		return fasthttp.StatusNotFound
	}

	passcode, err := hex.DecodeString(passcodeHex)
	if err != nil || len(passcode) == 0 {
		return fasthttp.StatusNotFound
	}

	infoHash, err := hex.DecodeString(infoHashHex)
	if err != nil {
		return fasthttp.StatusNotFound
	}

	torrent, data, err := s.metaFiles.MetaFile(ctx, passcode, infoHash)
	if errors.Is(err, database.ErrNotFound) {
		return fasthttp.StatusNotFound
	} else if err != nil {
		slog.Error("failed to load meta file", "info_hash", infoHashHex, "err", err)
		return fasthttp.StatusInternalServerError
	}

	config := s.tracker.Config()

	data, err = metainfo.Rewrite(data, config.AnnounceURL+"/"+hex.EncodeToString(passcode), config.Comment)
	if err != nil {
		slog.Error("failed to rewrite meta file", "torrent", torrent.ID, "err", err)
		return fasthttp.StatusInternalServerError
	}

	buf.Write(data)

	ctx.SetContentType("application/x-bittorrent")
	ctx.Response.Header.Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": torrent.Name + ".torrent"}))

	return fasthttp.StatusOK
}

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
	"errors"
	"log/slog"
	"time"

	"bitrack/collector"
	"bitrack/server/params"
	"bitrack/tracker"
	"bitrack/util"

	"github.com/valyala/fasthttp"
)

func (s *Server) announce(ctx *fasthttp.RequestCtx, passcode string, buf *bytes.Buffer) {
	startTime := time.Now()

	qp, err := params.ParseQuery(string(ctx.URI().QueryString()))
	if err != nil {
		s.reject(ctx, err, buf)
		return
	}

	req, err := params.NewAnnounceRequest(qp, passcode, s.sourceIP(ctx), string(ctx.UserAgent()),
		s.tracker.Config().DefaultNumWant)
	if err != nil {
		s.reject(ctx, err, buf)
		return
	}

	resp, err := s.tracker.Announce(ctx, req)
	if err != nil {
		s.reject(ctx, err, buf)
		return
	}

	util.BencodeAnnounce(buf, resp)

	collector.UpdateAnnounceTime(time.Since(startTime))
}

// reject answers with a bencoded failure; the HTTP status stays 200
func (s *Server) reject(ctx *fasthttp.RequestCtx, err error, buf *bytes.Buffer) {
	switch {
	case tracker.IsMalformed(err):
		collector.IncrementMalformedRequests()
		slog.Debug("malformed request", "uri", ctx.RequestURI(), "err", err)
	case tracker.IsStorage(err):
		collector.IncrementStorageFailures()
		slog.Warn("storage failure", "err", err)
	case errors.Is(err, tracker.ErrInvalidPasscode), errors.Is(err, tracker.ErrInvalidInfoHash),
		errors.Is(err, tracker.ErrNoInfoHashes):
		slog.Debug("rejected request", "uri", ctx.RequestURI(), "err", err)
	default:
		slog.Error("unexpected request error", "uri", ctx.RequestURI(), "err", err)
	}

	failure(tracker.FailureReason(err), buf)
}

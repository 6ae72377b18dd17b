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
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
)

var bearerPrefix = "Bearer "

func writeMetrics(gatherer prometheus.Gatherer, buf *bytes.Buffer) {
	mfs, err := gatherer.Gather()
	if err != nil {
		slog.Error("failed to gather metrics", "err", err)
	}

	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(buf, mf); err != nil {
			panic(err)
		}
	}
}

// metrics appends process and runtime metrics only for a valid admin token
func (s *Server) metrics(ctx *fasthttp.RequestCtx, buf *bytes.Buffer) int {
	writeMetrics(s.registry, buf)

	auth := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))

	if token, ok := strings.CutPrefix(auth, bearerPrefix); ok && s.adminToken != "" && token == s.adminToken {
		writeMetrics(prometheus.DefaultGatherer, buf)
	}

	return fasthttp.StatusOK
}

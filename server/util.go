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
	"net/netip"
	"strings"

	"bitrack/util"

	"github.com/valyala/fasthttp"
)

func failure(reason string, buf *bytes.Buffer) {
	// Reset buffer to prevent reuse of any written bytes
	buf.Reset()
	util.BencodeFailure(buf, reason)
}

// sourceIP trusts the configured proxy header when present, the socket address otherwise.
// The zero Addr is returned when neither yields an address.
func (s *Server) sourceIP(ctx *fasthttp.RequestCtx) netip.Addr {
	if s.proxyHeader != "" {
		if value := ctx.Request.Header.Peek(s.proxyHeader); len(value) > 0 {
			// X-Forwarded-For style lists carry the client first
			first, _, _ := strings.Cut(string(value), ",")

			addr, err := netip.ParseAddr(strings.TrimSpace(first))
			if err != nil {
				return netip.Addr{}
			}

			return addr.Unmap()
		}
	}

	addr, _ := netip.AddrFromSlice(ctx.RemoteIP())

	return addr.Unmap()
}

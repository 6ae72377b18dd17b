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

	"bitrack/server/params"
	"bitrack/util"

	"github.com/valyala/fasthttp"
)

func (s *Server) scrape(ctx *fasthttp.RequestCtx, buf *bytes.Buffer) {
	qp, err := params.ParseQuery(string(ctx.URI().QueryString()))
	if err != nil {
		s.reject(ctx, err, buf)
		return
	}

	resp, err := s.tracker.Scrape(ctx, params.NewScrapeRequest(qp))
	if err != nil {
		s.reject(ctx, err, buf)
		return
	}

	util.BencodeScrape(buf, resp)
}

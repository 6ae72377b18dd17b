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

// Package params turns raw announce and scrape query strings into typed tracker requests
package params

import (
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
)

// QueryParam percent-decoded query values. Values are opaque bytes; info_hash may repeat.
type QueryParam struct {
	query      string
	params     map[string][]byte
	infoHashes [][]byte
}

// ParseQuery splits on '&' then on the first '='. '+' is kept as is and
// malformed percent escapes pass through as literal bytes.
func ParseQuery(query string) (qp *QueryParam, err error) {
	qp = &QueryParam{
		query:      query,
		infoHashes: nil,
		params:     make(map[string][]byte),
	}

	var args fasthttp.Args

	// Args decodes '+' as a space; a literal '+' must survive
	args.Parse(strings.ReplaceAll(query, "+", "%2B"))

	args.VisitAll(func(key, value []byte) {
		name := strings.ToLower(string(key))
		value = append([]byte(nil), value...)

		if name == "info_hash" {
			qp.infoHashes = append(qp.infoHashes, value)
		} else {
			qp.params[name] = value
		}
	})

	return qp, nil
}

func (qp *QueryParam) getUint(which string, bitSize int) (ret uint64, exists bool) {
	str, exists := qp.params[which]
	if exists {
		var err error

		ret, err = strconv.ParseUint(string(str), 10, bitSize)
		if err != nil {
			exists = false
		}
	}

	return
}

// Has reports presence regardless of whether the value parses
func (qp *QueryParam) Has(which string) bool {
	_, exists := qp.params[which]
	return exists
}

func (qp *QueryParam) Get(which string) (ret []byte, exists bool) {
	ret, exists = qp.params[which]
	return
}

func (qp *QueryParam) GetString(which string) (ret string, exists bool) {
	b, exists := qp.params[which]
	return string(b), exists
}

// GetBool only "1" is true
func (qp *QueryParam) GetBool(which string) bool {
	b, exists := qp.params[which]
	return exists && string(b) == "1"
}

func (qp *QueryParam) GetUint64(which string) (ret uint64, exists bool) {
	return qp.getUint(which, 64)
}

func (qp *QueryParam) GetUint16(which string) (ret uint16, exists bool) {
	tmp, exists := qp.getUint(which, 16)
	ret = uint16(tmp)

	return
}

func (qp *QueryParam) InfoHashes() [][]byte {
	return qp.infoHashes
}

func (qp *QueryParam) RawQuery() string {
	return qp.query
}

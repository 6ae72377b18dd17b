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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"bitrack/metainfo"

	"github.com/zeebo/bencode"
)

var (
	decode, inspect, help bool
)

// provided at compile-time
var (
	BuildDate    = "0000-00-00T00:00:00+0000"
	BuildVersion = "development"
)

func init() {
	flag.BoolVar(&decode, "d", false, "Decodes data instead of encoding")
	flag.BoolVar(&inspect, "i", false, "Prints info hash, name and files of a .torrent read from stdin")
	flag.BoolVar(&help, "h", false, "Prints this help message")
}

func main() {
	fmt.Fprintf(os.Stderr, "bencode for bitrack, ver=%s date=%s runtime=%s\n\n",
		BuildVersion, BuildDate, runtime.Version())

	flag.Parse()

	if help {
		fmt.Printf("Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()

		return
	}

	var val interface{}

	switch {
	case inspect:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			panic(err)
		}

		mi, err := metainfo.Parse(data)
		if err != nil {
			panic(err)
		}

		out, err := json.MarshalIndent(struct {
			InfoHash string          `json:"info_hash"`
			Name     string          `json:"name"`
			Size     int64           `json:"size"`
			Files    []metainfo.File `json:"files"`
		}{mi.InfoHash.String(), mi.Name, mi.TotalSize(), mi.Files}, "", "\t")
		if err != nil {
			panic(err)
		}

		fmt.Println(string(out))
	case decode:
		decoder := bencode.NewDecoder(os.Stdin)

		err := decoder.Decode(&val)
		if err != nil {
			panic(err)
		}

		out, err := json.MarshalIndent(val, "", "\t")
		if err != nil {
			panic(err)
		}

		fmt.Print(string(out))
	default:
		decoder := json.NewDecoder(os.Stdin)
		decoder.UseNumber()

		err := decoder.Decode(&val)
		if err != nil {
			panic(err)
		}

		encoder := bencode.NewEncoder(os.Stdout)
		err = encoder.Encode(val)
		if err != nil {
			panic(err)
		}
	}
}

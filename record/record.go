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

// Package record appends one JSON array per announce to an hourly event file
package record

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"bitrack/tracker"
	"bitrack/util"
)

// Recorder a tracker.Observer writing to <dir>/events_<YYYY-MM-DDTHH>.json
type Recorder struct {
	dir     string
	channel chan []byte
	done    chan struct{}
}

var _ tracker.Observer = (*Recorder)(nil)

func getFile(dir string, t time.Time) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, "events_"+t.Format("2006-01-02T15")+".json"),
		os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
}

func New(dir string) (*Recorder, error) {
	if err := os.Mkdir(dir, 0755); err != nil && !os.IsExist(err) {
		return nil, err
	}

	start := time.Now()

	file, err := getFile(dir, start)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		dir:     dir,
		channel: make(chan []byte, 64),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(r.done)

		for buf := range r.channel {
			now := time.Now()
			if now.Hour() != start.Hour() || now.YearDay() != start.YearDay() {
				start = now

				if err := file.Close(); err != nil {
					slog.Error("failed to close event file", "err", err)
				}

				if file, err = getFile(dir, start); err != nil {
					slog.Error("failed to open event file, dropping events", "err", err)
					continue
				}
			}

			if _, err := file.Write(buf); err != nil {
				slog.Error("failed to write event", "err", err)
			}
		}

		if err := file.Close(); err != nil {
			slog.Error("failed to close event file", "err", err)
		}
	}()

	return r, nil
}

// Announced records nothing when the client reported no transfer at all
func (r *Recorder) Announced(rec *tracker.AnnounceRecord) {
	if rec.Uploaded == 0 && rec.Downloaded == 0 {
		return
	}

	r.channel <- Format(rec)
}

// Close flushes pending events. The Recorder must not be used afterwards.
func (r *Recorder) Close() {
	close(r.channel)
	<-r.done
}

// Format [torrent_id,user_id,"ip",port,"event",seeder,deltaUp,deltaDown,up,down,left] followed by a newline
func Format(rec *tracker.AnnounceRecord) []byte {
	b := make([]byte, 0, 192)
	buf := bytes.NewBuffer(b)

	buf.WriteString("[\"")
	buf.WriteString(rec.TorrentID.String())
	buf.WriteString("\",\"")
	buf.WriteString(rec.UserID.String())
	buf.WriteString("\",\"")
	buf.WriteString(rec.IP.Unmap().String())
	buf.WriteString("\",")
	buf.WriteString(strconv.FormatUint(uint64(rec.Port), 10))
	buf.WriteString(",\"")
	buf.WriteString(rec.Event.String())
	buf.WriteString("\",")
	buf.WriteString(util.Btoa(rec.Seeder))
	buf.WriteString(",")
	buf.WriteString(strconv.FormatInt(rec.DeltaUploaded, 10))
	buf.WriteString(",")
	buf.WriteString(strconv.FormatInt(rec.DeltaDownloaded, 10))
	buf.WriteString(",")
	buf.WriteString(strconv.FormatUint(rec.Uploaded, 10))
	buf.WriteString(",")
	buf.WriteString(strconv.FormatUint(rec.Downloaded, 10))
	buf.WriteString(",")
	buf.WriteString(strconv.FormatUint(rec.Left, 10))
	buf.WriteString("]\n")

	return buf.Bytes()
}

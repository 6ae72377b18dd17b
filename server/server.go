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

// Package server exposes the tracker over HTTP
package server

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"runtime/debug"
	"strings"
	"time"

	"bitrack/collector"
	"bitrack/config"
	"bitrack/database"
	"bitrack/database/types"
	"bitrack/record"
	"bitrack/tracker"
	"bitrack/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

// MetaFiles serves stored .torrent files for the download endpoint
type MetaFiles interface {
	MetaFile(ctx context.Context, passcode, infoHash []byte) (*types.Torrent, []byte, error)
}

type Server struct {
	tracker   *tracker.Tracker
	metaFiles MetaFiles

	prefix      string
	proxyHeader string
	adminToken  string

	bufferPool *util.BufferPool
	registry   *prometheus.Registry

	startTime time.Time
}

// New metaFiles may be nil, in which case downloads answer 404
func New(t *tracker.Tracker, metaFiles MetaFiles) *Server {
	httpConfig := config.Section("http")

	prefix, _ := httpConfig.Get("prefix", "/tracker")
	proxyHeader, _ := httpConfig.Get("proxy_header", "")
	adminToken, _ := httpConfig.Get("admin_token", "")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector.NewCollector())

	return &Server{
		tracker:     t,
		metaFiles:   metaFiles,
		prefix:      strings.TrimSuffix(prefix, "/"),
		proxyHeader: proxyHeader,
		adminToken:  adminToken,
		// Announce responses for the default numwant fit in well under 1 KiB
		bufferPool: util.NewBufferPool(1024, 64*1024),
		registry:   registry,
		startTime:  time.Now(),
	}
}

const (
	defaultNumWant        = 50
	defaultInterval       = 900
	defaultPeerInactivity = time.Hour
	defaultPurgeInterval  = time.Minute
)

// TrackerConfig reads the tracker section once; the request path never consults config again
func TrackerConfig() tracker.Config {
	return trackerConfigFrom(config.Section("tracker"))
}

// trackerConfigFrom out of range numbers are logged and clamped
func trackerConfigFrom(trackerConfig config.Map) tracker.Config {
	announceURL, _ := trackerConfig.Get("announce_url", "")
	comment, _ := trackerConfig.Get("comment", "")
	numWant, _ := trackerConfig.GetInt("default_numwant", defaultNumWant)
	interval, _ := trackerConfig.GetInt("interval", defaultInterval)

	cfg := tracker.Config{
		AnnounceURL:    announceURL,
		Comment:        comment,
		DefaultNumWant: uint16(numWant),
		Interval:       uint32(interval),
	}

	switch {
	case numWant < 0:
		slog.Warn("default_numwant is negative, using default", "value", numWant, "default", defaultNumWant)
		cfg.DefaultNumWant = defaultNumWant
	case numWant > math.MaxUint16:
		slog.Warn("default_numwant is too large, clamping", "value", numWant, "max", math.MaxUint16)
		cfg.DefaultNumWant = math.MaxUint16
	}

	switch {
	case interval <= 0:
		slog.Warn("interval must be positive, using default", "value", interval, "default", defaultInterval)
		cfg.Interval = defaultInterval
	case int64(interval) > math.MaxUint32:
		slog.Warn("interval is too large, clamping", "value", interval, "max", uint32(math.MaxUint32))
		cfg.Interval = math.MaxUint32
	}

	return cfg
}

// purgeIntervals non positive durations fall back to the defaults
func purgeIntervals(intervals config.Map) (peerInactivity, purgeInterval time.Duration) {
	peerInactivity, _ = intervals.GetDuration("peer_inactivity", defaultPeerInactivity)
	purgeInterval, _ = intervals.GetDuration("purge_inactive_peers", defaultPurgeInterval)

	if peerInactivity <= 0 {
		slog.Warn("peer_inactivity must be positive, using default", "value", peerInactivity, "default", defaultPeerInactivity)
		peerInactivity = defaultPeerInactivity
	}

	if purgeInterval <= 0 {
		slog.Warn("purge_inactive_peers must be positive, using default", "value", purgeInterval, "default", defaultPurgeInterval)
		purgeInterval = defaultPurgeInterval
	}

	return peerInactivity, purgeInterval
}

func (s *Server) respond(ctx *fasthttp.RequestCtx, buf *bytes.Buffer) int {
	path := string(ctx.Path())

	switch path {
	case "/alive":
		return s.alive(ctx, buf)
	case "/metrics":
		return s.metrics(ctx, buf)
	}

	rest, ok := strings.CutPrefix(path, s.prefix+"/")
	if !ok {
		return fasthttp.StatusNotFound
	}

	action, arg, _ := strings.Cut(rest, "/")

	switch action {
	case "announce":
		if arg == "" || strings.Contains(arg, "/") {
			return fasthttp.StatusNotFound
		}

		collector.IncrementRequests(collector.RequestAnnounce)
		s.announce(ctx, arg, buf)

		return fasthttp.StatusOK
	case "scrape":
		if arg != "" {
			return fasthttp.StatusNotFound
		}

		collector.IncrementRequests(collector.RequestScrape)
		s.scrape(ctx, buf)

		return fasthttp.StatusOK
	case "download":
		collector.IncrementRequests(collector.RequestDownload)
		return s.download(ctx, arg, buf)
	}

	return fasthttp.StatusNotFound
}

func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	buf := s.bufferPool.Take()
	defer s.bufferPool.Give(buf)

	defer func() {
		if err := recover(); err != nil {
			slog.Error("handler panic", "err", err, "uri", ctx.RequestURI(), "stack", string(debug.Stack()))

			failure("internal error", buf)
			ctx.Response.Header.Del("Content-Disposition")
			ctx.SetContentType("text/plain")
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBody(buf.Bytes())

			collector.IncrementErroredRequests()
		}
	}()

	ctx.SetContentType("text/plain")

	status := s.respond(ctx, buf)

	ctx.SetStatusCode(status)
	ctx.SetBody(buf.Bytes())
}

// Start serves until ctx is done, purging inactive peers in the background
func Start(ctx context.Context) error {
	httpConfig := config.Section("http")
	addr, _ := httpConfig.Get("addr", ":34000")
	readTimeout, _ := httpConfig.GetDuration("read_timeout", 2*time.Second)
	writeTimeout, _ := httpConfig.GetDuration("write_timeout", 2*time.Second)

	peerInactivity, purgeInterval := purgeIntervals(config.Section("intervals"))

	db, err := database.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = db.Close()
	}()

	if migrate, _ := config.Section("database").GetBool("migrate", false); migrate {
		slog.Info("migrating database schema")

		if err = db.Migrate(ctx); err != nil {
			return err
		}
	}

	t := tracker.New(db, TrackerConfig())

	if enabled, _ := config.GetBool("record", false); enabled {
		recorder, err := record.New("events")
		if err != nil {
			return err
		}

		defer recorder.Close()

		t.Observer = recorder
	}

	s := New(t, db)

	server := &fasthttp.Server{
		Handler:      s.Handler,
		Name:         "bitrack",
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("ready and accepting new connections", "addr", addr)
		return server.ListenAndServe(addr)
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down, waiting for active connections")

		return server.Shutdown()
	})

	g.Go(func() error {
		util.ContextTick(gctx, purgeInterval, func(now time.Time) {
			if _, err := db.PurgeInactivePeers(gctx, now, peerInactivity); err != nil {
				slog.Error("failed to purge inactive peers", "err", err)
			}
		})

		return nil
	})

	err = g.Wait()

	slog.Info("shutdown complete")

	return err
}

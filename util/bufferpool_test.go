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

package util

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestBufferPool(t *testing.T) {
	bufferPool := NewBufferPool(64, 1024)

	poolBuf := bufferPool.Take()
	if !bytes.Equal(poolBuf.Bytes(), []byte("")) {
		t.Fatalf("Buffer from empty bufferpool was allocated incorrectly.")
	}

	origBuf := bytes.NewBuffer([]byte("X"))
	bufferPool.Give(origBuf)

	reusedBuf := bufferPool.Take()
	if !bytes.Equal(reusedBuf.Bytes(), []byte("")) {
		t.Fatalf("Buffer from filled bufferpool was recycled incorrectly.")
	}

	if &origBuf.Bytes()[:1][0] != &reusedBuf.Bytes()[:1][0] {
		t.Fatalf("Recycled buffer points at different address.")
	}
}

func TestBufferPoolMaxSize(t *testing.T) {
	bufferPool := NewBufferPool(64, 1024)

	bigBuf := bytes.NewBuffer(make([]byte, 0, 4096))
	bufferPool.Give(bigBuf)

	for i := 0; i < 10; i++ {
		if buf := bufferPool.Take(); buf == bigBuf {
			t.Fatalf("Oversized buffer was recycled.")
		}
	}
}

func TestContextTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ticks := 0
	done := make(chan struct{})

	go func() {
		defer close(done)

		ContextTick(ctx, time.Millisecond, func(now time.Time) {
			if now.IsZero() {
				t.Errorf("Expected tick time, got zero")
			}

			ticks++
			if ticks == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("ContextTick did not return after cancel")
	}

	if ticks < 3 {
		t.Fatalf("Expected at least 3 ticks, got %d", ticks)
	}
}

func TestContextTickNonPositive(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)

		ticks := 0

		ContextTick(ctx, d, func(time.Time) {
			ticks++
		})

		cancel()

		if ticks != 0 {
			t.Fatalf("Expected no ticks for %s, got %d", d, ticks)
		}
	}
}

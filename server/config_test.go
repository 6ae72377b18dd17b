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
	"encoding/json"
	"math"
	"testing"
	"time"

	"bitrack/config"
	"bitrack/tracker"

	"github.com/google/go-cmp/cmp"
)

func TestTrackerConfigFrom(t *testing.T) {
	cases := []struct {
		numWant, interval string
		expected          tracker.Config
	}{
		{"25", "1800", tracker.Config{DefaultNumWant: 25, Interval: 1800}},
		{"0", "1", tracker.Config{DefaultNumWant: 0, Interval: 1}},
		{"-1", "0", tracker.Config{DefaultNumWant: defaultNumWant, Interval: defaultInterval}},
		{"65536", "-900", tracker.Config{DefaultNumWant: math.MaxUint16, Interval: defaultInterval}},
		{"100000", "4294967296", tracker.Config{DefaultNumWant: math.MaxUint16, Interval: math.MaxUint32}},
	}

	for _, c := range cases {
		got := trackerConfigFrom(config.Map{
			"default_numwant": json.Number(c.numWant),
			"interval":        json.Number(c.interval),
		})

		if !cmp.Equal(got, c.expected) {
			t.Fatalf("Got wrong config for numwant %s and interval %s: %s",
				c.numWant, c.interval, cmp.Diff(c.expected, got))
		}
	}

	got := trackerConfigFrom(nil)
	expected := tracker.Config{DefaultNumWant: defaultNumWant, Interval: defaultInterval}

	if !cmp.Equal(got, expected) {
		t.Fatalf("Got wrong default config: %s", cmp.Diff(expected, got))
	}
}

func TestPurgeIntervals(t *testing.T) {
	cases := []struct {
		inactivity, purge                 string
		expectedInactivity, expectedPurge time.Duration
	}{
		{"7200", "30", 2 * time.Hour, 30 * time.Second},
		{"0", "0", defaultPeerInactivity, defaultPurgeInterval},
		{"-5", "-1", defaultPeerInactivity, defaultPurgeInterval},
	}

	for _, c := range cases {
		inactivity, purge := purgeIntervals(config.Map{
			"peer_inactivity":      json.Number(c.inactivity),
			"purge_inactive_peers": json.Number(c.purge),
		})

		if inactivity != c.expectedInactivity || purge != c.expectedPurge {
			t.Fatalf("Expected %s and %s, got %s and %s",
				c.expectedInactivity, c.expectedPurge, inactivity, purge)
		}
	}
}

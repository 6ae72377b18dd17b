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
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"bitrack/config"
	"bitrack/database"
	"bitrack/metainfo"
	"bitrack/util"
)

// provided at compile-time
var (
	BuildDate    = "0000-00-00T00:00:00+0000"
	BuildVersion = "development"
)

const passcodeSize = 16

func help() {
	fmt.Printf("Usage of %s:\n", os.Args[0])
	fmt.Println("  add <file.torrent> [name]   stores a torrent so that it can be announced and downloaded")
	fmt.Println("  adduser                     creates a user and prints its passcode")
	fmt.Println("  migrate                     creates missing database tables")
}

func main() {
	fmt.Printf("importer for bitrack, ver=%s date=%s runtime=%s\n\n",
		BuildVersion, BuildDate, runtime.Version())

	if len(os.Args) < 2 {
		help()
		return
	}

	if cf := os.Getenv("BITRACK_CONFIG"); cf != "" {
		config.SetFile(cf)
	}

	var err error

	switch os.Args[1] {
	case "add":
		if len(os.Args) < 3 {
			help()
			return
		}

		name := ""
		if len(os.Args) > 3 {
			name = os.Args[3]
		}

		err = withDatabase(func(ctx context.Context, db *database.Database) error {
			return add(ctx, db, os.Args[2], name)
		})
	case "adduser":
		err = withDatabase(addUser)
	case "migrate":
		err = withDatabase(func(ctx context.Context, db *database.Database) error {
			return db.Migrate(ctx)
		})
	default:
		help()
		return
	}

	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func withDatabase(f func(ctx context.Context, db *database.Database) error) error {
	db, err := database.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = db.Close()
	}()

	return f(context.Background(), db)
}

func add(ctx context.Context, db *database.Database, path, name string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	mi, err := metainfo.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	torrent, err := db.ImportTorrent(ctx, mi, name, raw, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\t%d files\t%d bytes\n", torrent.InfoHash, torrent.Name, len(mi.Files), torrent.Size)

	return nil
}

func addUser(ctx context.Context, db *database.Database) error {
	passcode, err := util.RandomBytes(passcodeSize)
	if err != nil {
		return err
	}

	user, err := db.CreateUser(ctx, passcode)
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\n", user.ID, hex.EncodeToString(user.Passcode))

	return nil
}

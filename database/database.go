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

// Package database is the MySQL backed swarm store
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"log/slog"
	"os"
	"time"

	"bitrack/collector"
	"bitrack/config"

	"github.com/go-sql-driver/mysql"
)

const (
	errDeadlock        = 1213
	errLockWaitTimeout = 1205
)

//go:embed schema.sql
var schema string

var errDeadlockRetries = errors.New("deadlock retries exhausted")

type Database struct {
	conn *sql.DB

	deadlockWaitTime   time.Duration
	maxDeadlockRetries int
}

var defaultDsn = map[string]string{
	"username": "bitrack",
	"password": "",
	"proto":    "tcp",
	"addr":     "127.0.0.1:3306",
	"database": "bitrack",
}

// dsn DB_DSN from the environment wins over the config file. Useful for tests.
func dsn() (string, error) {
	var cfg *mysql.Config

	if env := os.Getenv("DB_DSN"); env != "" {
		var err error

		if cfg, err = mysql.ParseDSN(env); err != nil {
			return "", err
		}
	} else {
		databaseConfig := config.Section("database")

		cfg = mysql.NewConfig()
		cfg.User, _ = databaseConfig.Get("username", defaultDsn["username"])
		cfg.Passwd, _ = databaseConfig.Get("password", defaultDsn["password"])
		cfg.Net, _ = databaseConfig.Get("proto", defaultDsn["proto"])
		cfg.Addr, _ = databaseConfig.Get("addr", defaultDsn["addr"])
		cfg.DBName, _ = databaseConfig.Get("database", defaultDsn["database"])
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true

	return cfg.FormatDSN(), nil
}

func Open() (*Database, error) {
	databaseConfig := config.Section("database")
	deadlockWaitTime, _ := databaseConfig.GetDuration("deadlock_pause", time.Second)
	maxDeadlockRetries, _ := databaseConfig.GetInt("deadlock_retries", 5)

	if maxDeadlockRetries < 1 {
		slog.Warn("deadlock_retries must be at least 1", "value", maxDeadlockRetries)
		maxDeadlockRetries = 1
	}

	databaseDsn, err := dsn()
	if err != nil {
		return nil, err
	}

	slog.Info("opening database connection")

	conn, err := sql.Open("mysql", databaseDsn)
	if err != nil {
		return nil, err
	}

	if err = conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Database{
		conn:               conn,
		deadlockWaitTime:   deadlockWaitTime,
		maxDeadlockRetries: maxDeadlockRetries,
	}, nil
}

func (db *Database) Close() error {
	slog.Info("closing database connection")
	return db.conn.Close()
}

// Migrate creates missing tables. Existing tables are left untouched.
func (db *Database) Migrate(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schema)
	return err
}

// observe counts MySQL failures seen on the request path, which never retries
func observe(err error) error {
	var merr *mysql.MySQLError

	if errors.As(err, &merr) {
		switch merr.Number {
		case errDeadlock:
			collector.IncrementDeadlockCount()
		case errLockWaitTimeout:
			collector.IncrementLockWaitTimeout()
		default:
			collector.IncrementSQLErrorCount()
		}
	}

	return err
}

// perform retries exec on deadlock and lock wait timeout with a growing pause.
// A nil result always comes with a non nil error.
func (db *Database) perform(ctx context.Context, exec func() (sql.Result, error)) (result sql.Result, err error) {
	var wait time.Duration

	for tries := 1; tries <= db.maxDeadlockRetries; tries++ {
		result, err = exec()
		if err == nil {
			return result, nil
		}

		var merr *mysql.MySQLError
		if !errors.As(err, &merr) {
			return nil, err
		}

		if merr.Number != errDeadlock && merr.Number != errLockWaitTimeout {
			slog.Error("sql error", "number", merr.Number, "message", merr.Message)
			collector.IncrementSQLErrorCount()

			return nil, err
		}

		if tries == 1 {
			if merr.Number == errDeadlock {
				collector.IncrementDeadlockCount()
			} else {
				collector.IncrementLockWaitTimeout()
			}
		}

		if tries == db.maxDeadlockRetries {
			break
		}

		wait = db.deadlockWaitTime * time.Duration(tries)
		slog.Warn("deadlock found, retrying", "wait", wait, "try", tries, "max", db.maxDeadlockRetries)

		collector.IncrementDeadlockTime(wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	slog.Error("deadlocked too many times, giving up", "tries", db.maxDeadlockRetries)
	collector.IncrementDeadlockAborted()

	return nil, errors.Join(errDeadlockRetries, err)
}

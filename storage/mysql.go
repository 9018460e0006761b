// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const mysqlSchema = `CREATE TABLE IF NOT EXISTS local_storage (
	session_id VARCHAR(64) NOT NULL,
	k VARCHAR(64) NOT NULL,
	v MEDIUMTEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, k)
)`

// MySQL stores values in a single local_storage table.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens dsn and creates the table when it is missing.
func NewMySQL(ctx context.Context, dsn string) (*MySQL, error) {
	if dsn == "" {
		return nil, errors.New("storage: mysql dsn not set")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "storage: could not open mysql")
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "storage: mysql ping failed")
	}
	if _, err := db.ExecContext(ctx, mysqlSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "storage: could not create local_storage table")
	}
	return &MySQL{db: db}, nil
}

func (s *MySQL) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		"SELECT v FROM local_storage WHERE session_id = ? AND k = ?",
		sessionID, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "storage: get %s", key)
	}
	return v, true, nil
}

func (s *MySQL) Set(ctx context.Context, sessionID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO local_storage (session_id, k, v, updated_at) VALUES (?, ?, ?, ?) "+
			"ON DUPLICATE KEY UPDATE v = VALUES(v), updated_at = VALUES(updated_at)",
		sessionID, key, value, time.Now().UTC())
	return errors.Wrapf(err, "storage: set %s", key)
}

func (s *MySQL) Remove(ctx context.Context, sessionID, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM local_storage WHERE session_id = ? AND k = ?", sessionID, key)
	return errors.Wrapf(err, "storage: remove %s", key)
}

func (s *MySQL) Close(context.Context) error {
	return s.db.Close()
}

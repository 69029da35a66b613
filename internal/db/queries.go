// Package db contains database query helpers for fm.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrOwnerNotFound = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
)

// nowUnix returns the current Unix timestamp in seconds.
func nowUnix() int64 { return time.Now().Unix() }

// GetConfig fetches a single config key from the database.
// The boolean indicates whether the key exists.
func (d *DB) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&v)
	if err == nil {
		return v, true, nil
	}
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	return "", false, err
}

// SetConfig upserts a config key/value pair and updates its timestamp.
func (d *DB) SetConfig(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("config key is required")
	}
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO config(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at
`, key, value, nowUnix())
	return err
}

// IsInitialized reports whether setup has completed.
func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	v, ok, err := d.GetConfig(ctx, ConfigInitialized)
	if err != nil {
		return false, err
	}
	return ok && v == "1", nil
}

// SetInitialized marks the database as setup-complete.
func (d *DB) SetInitialized(ctx context.Context) error {
	return d.SetConfig(ctx, ConfigInitialized, "1")
}

// CreateUser inserts a new user with a fresh UUID.
// A duplicate username returns ErrUsernameTaken.
func (d *DB) CreateUser(ctx context.Context, username, passHash string) (*User, error) {
	if username == "" || passHash == "" {
		return nil, errors.New("username and password hash are required")
	}
	u := &User{
		ID:        uuid.NewString(),
		Username:  username,
		PassHash:  passHash,
		CreatedAt: nowUnix(),
	}
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO users(id, username, password_hash, created_at) VALUES(?, ?, ?, ?)
`, u.ID, u.Username, u.PassHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

// GetUserByUsername looks up a user by username.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (*User, bool, error) {
	return d.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username=?`, username)
}

// GetUserByID looks up a user by ID.
func (d *DB) GetUserByID(ctx context.Context, id string) (*User, bool, error) {
	return d.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id=?`, id)
}

func (d *DB) getUser(ctx context.Context, query string, arg any) (*User, bool, error) {
	var u User
	err := d.sql.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PassHash, &u.CreatedAt)
	if err == nil {
		return &u, true, nil
	}
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	return nil, false, err
}

// UpdatePasswordHash replaces a user's stored hash. It reports whether the
// user exists.
func (d *DB) UpdatePasswordHash(ctx context.Context, id, passHash string) (bool, error) {
	if id == "" || passHash == "" {
		return false, errors.New("user id and password hash are required")
	}
	res, err := d.sql.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, passHash, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteUser removes a user and, through the foreign key, all their hosts.
func (d *DB) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid user id")
	}
	_, err := d.sql.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
	return err
}

// CreateHost stores a host for userID. It returns ErrOwnerNotFound when the
// owner does not exist.
func (d *DB) CreateHost(ctx context.Context, userID, name string, typ HostType, cfg HostConfig) (*Host, error) {
	if userID == "" || name == "" || typ == "" {
		return nil, errors.New("user id, name, and type are required")
	}
	if _, ok, err := d.GetUserByID(ctx, userID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrOwnerNotFound
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	h := &Host{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Type:      typ,
		Config:    cfg,
		CreatedAt: nowUnix(),
	}
	_, err = d.sql.ExecContext(ctx, `
INSERT INTO hosts(id, user_id, name, host_type, config, created_at) VALUES(?, ?, ?, ?, ?, ?)
`, h.ID, h.UserID, h.Name, string(h.Type), string(raw), h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// GetHost looks up a host by ID regardless of owner.
func (d *DB) GetHost(ctx context.Context, id string) (*Host, bool, error) {
	row := d.sql.QueryRowContext(ctx, `
SELECT id, user_id, name, host_type, config, created_at FROM hosts WHERE id=?
`, id)
	h, err := scanHost(row)
	if err == nil {
		return h, true, nil
	}
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	return nil, false, err
}

// ListHostsByOwner returns the hosts of userID, oldest first.
func (d *DB) ListHostsByOwner(ctx context.Context, userID string) ([]Host, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT id, user_id, name, host_type, config, created_at FROM hosts WHERE user_id=? ORDER BY created_at, name
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// DeleteHost removes a host by ID. The boolean reports whether it existed.
func (d *DB) DeleteHost(ctx context.Context, id string) (bool, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM hosts WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHost(s scanner) (*Host, error) {
	var h Host
	var typ, raw string
	if err := s.Scan(&h.ID, &h.UserID, &h.Name, &typ, &raw, &h.CreatedAt); err != nil {
		return nil, err
	}
	t, err := ParseHostType(typ)
	if err != nil {
		return nil, err
	}
	h.Type = t
	if err := json.Unmarshal([]byte(raw), &h.Config); err != nil {
		return nil, err
	}
	return &h, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

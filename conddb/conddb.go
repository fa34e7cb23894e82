// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to retrieve and persist the configuration of
// MoCA coprocessors from the configuration database.
package conddb // import "github.com/go-lpc/moca/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/go-lpc/moca/mxl"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to easily retrieve and persist the
// configuration of MoCA devices.
type DB struct {
	db   *sql.DB
	name string // name of the configuration database
}

// Open opens a connection to the configuration database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// DeviceConfig returns the last configuration recorded for the named
// device. Unset or NULL columns yield zero values.
func (db *DB) DeviceConfig(ctx context.Context, name string) (mxl.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var cfg mxl.Config
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT guid, phy_mode FROM moca_devices WHERE name=? ORDER BY datetime DESC LIMIT 1",
		name,
	)
	if err != nil {
		return cfg, fmt.Errorf("conddb: could not query config of %q: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var guid, mode sql.NullString
		err = rows.Scan(&guid, &mode)
		if err != nil {
			return cfg, fmt.Errorf("conddb: could not get config of %q: %w", name, err)
		}

		if guid.Valid && guid.String != "" {
			cfg.GUID, err = mxl.ParseGUID(guid.String)
			if err != nil {
				return cfg, fmt.Errorf("conddb: invalid GUID for %q: %w", name, err)
			}
		}

		if mode.Valid {
			cfg.Mode, err = mxl.ParseMode(mode.String)
			if err != nil {
				return cfg, fmt.Errorf("conddb: invalid interface mode for %q: %w", name, err)
			}
		}
	}

	if err := rows.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: could not scan db for config of %q: %w", name, err)
	}

	if err := ctx.Err(); err != nil {
		return cfg, fmt.Errorf("conddb: context error while retrieving config of %q: %w", name, err)
	}

	return cfg, nil
}

// SaveDeviceConfig records a new configuration for the named device.
func (db *DB) SaveDeviceConfig(ctx context.Context, name string, cfg mxl.Config) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var guid sql.NullString
	if !cfg.GUID.IsZero() {
		guid = sql.NullString{String: cfg.GUID.String(), Valid: true}
	}

	_, err := db.db.ExecContext(
		ctx,
		"INSERT INTO moca_devices (name, guid, phy_mode, datetime) VALUES (?, ?, ?, ?)",
		name, guid, cfg.Mode.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("conddb: could not save config of %q: %w", name, err)
	}
	return nil
}

// Provider returns the configuration provider of the named device.
func (db *DB) Provider(name string) *Provider {
	return &Provider{db: db, name: name}
}

// Provider provides the configuration of one device from the database.
// It implements mxl.ConfigProvider and mxl.GUIDStore.
type Provider struct {
	db   *DB
	name string
}

var (
	_ mxl.ConfigProvider = (*Provider)(nil)
	_ mxl.GUIDStore      = (*Provider)(nil)
)

func (p *Provider) Config() (mxl.Config, error) {
	return p.db.DeviceConfig(context.Background(), p.name)
}

// SaveGUID records g as the GUID of the device, keeping its last
// recorded interface mode.
func (p *Provider) SaveGUID(g mxl.GUID) error {
	ctx := context.Background()
	cfg, err := p.db.DeviceConfig(ctx, p.name)
	if err != nil {
		return err
	}
	cfg.GUID = g
	return p.db.SaveDeviceConfig(ctx, p.name, cfg)
}

// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-daq/tdaq/log"
)

// ResumePolicy selects what a device does with its firmware when it
// is resumed after a suspend.
type ResumePolicy uint8

const (
	// ResumeRedetect forgets the bring-up state and waits for a fresh
	// warm detection before refreshing status again.
	ResumeRedetect ResumePolicy = iota

	// ResumeReload runs the full firmware bring-up sequence again.
	ResumeReload
)

func (p ResumePolicy) String() string {
	switch p {
	case ResumeReload:
		return "reload"
	default:
		return "redetect"
	}
}

// ParseResumePolicy parses a resume policy name.
func ParseResumePolicy(s string) (ResumePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "redetect":
		return ResumeRedetect, nil
	case "reload":
		return ResumeReload, nil
	}
	return ResumeRedetect, fmt.Errorf("mxl: unknown resume policy %q", s)
}

// sleeper waits for d or until ctx is done.
type sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type config struct {
	refresh time.Duration
	resume  ResumePolicy

	msg   log.MsgStream
	sleep sleeper
	rand  io.Reader

	fw    FirmwareSource
	cfg   ConfigProvider
	iface AttachedInterface
}

func newConfig() config {
	return config{
		refresh: 1 * time.Second,
		resume:  ResumeRedetect,
		msg:     log.NewMsgStream("mxl", log.LvlInfo, os.Stdout),
		sleep:   sleepCtx,
		rand:    rand.Reader,
	}
}

// Option configures a Device.
type Option func(cfg *config)

// WithRefreshInterval sets the period of the status and statistics refresh.
func WithRefreshInterval(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.refresh = d
		}
	}
}

// WithResumePolicy sets the behaviour of Device.Resume.
func WithResumePolicy(p ResumePolicy) Option {
	return func(cfg *config) {
		cfg.resume = p
	}
}

// WithMsgStream sets the message stream used to report progress and errors.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithFirmwareSource sets the provider of firmware images.
// Without a firmware source, only warm-booted devices can be attached.
func WithFirmwareSource(src FirmwareSource) Option {
	return func(cfg *config) {
		cfg.fw = src
	}
}

// WithConfigProvider sets the provider of the persisted GUID and of the
// interface mode preference.
func WithConfigProvider(p ConfigProvider) Option {
	return func(cfg *config) {
		cfg.cfg = p
	}
}

// WithAttachedInterface sets the network interface whose hardware address
// is used to derive a GUID.
func WithAttachedInterface(iface AttachedInterface) Option {
	return func(cfg *config) {
		cfg.iface = iface
	}
}

// WithRand sets the random source used to generate GUIDs.
func WithRand(r io.Reader) Option {
	return func(cfg *config) {
		cfg.rand = r
	}
}

// withSleeper replaces the blocking waits. Used by tests.
func withSleeper(s sleeper) Option {
	return func(cfg *config) {
		cfg.sleep = s
	}
}

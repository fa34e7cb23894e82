// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mxl implements the control plane of MaxLinear MXL371x MoCA
// coprocessors: indirect register access, firmware bring-up, link status
// and statistics supervision, temperature sensing and GUID management.
package mxl // import "github.com/go-lpc/moca/mxl"

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/go-daq/tdaq/log"
)

// Config is the persisted configuration of a coprocessor.
// Zero values mean "not configured".
type Config struct {
	GUID GUID
	Mode Mode
}

// ConfigProvider provides the persisted configuration of a coprocessor.
type ConfigProvider interface {
	Config() (Config, error)
}

// GUIDStore is implemented by configuration providers able to persist
// a GUID changed at run time.
type GUIDStore interface {
	SaveGUID(g GUID) error
}

// StaticConfig is a ConfigProvider returning a fixed configuration.
type StaticConfig Config

func (cfg StaticConfig) Config() (Config, error) { return Config(cfg), nil }

// AttachedInterface provides the hardware address of the host network
// interface associated with the coprocessor.
type AttachedInterface interface {
	HardwareAddr() ([6]byte, error)
}

// NetInterface is an AttachedInterface backed by a host network interface.
type NetInterface string

func (name NetInterface) HardwareAddr() ([6]byte, error) {
	var hw [6]byte
	iface, err := net.InterfaceByName(string(name))
	if err != nil {
		return hw, fmt.Errorf("mxl: could not find interface %q: %w", string(name), err)
	}
	if len(iface.HardwareAddr) != len(hw) {
		return hw, fmt.Errorf("mxl: interface %q has no 6-byte hardware address", string(name))
	}
	copy(hw[:], iface.HardwareAddr)
	return hw, nil
}

// Device is one MXL371x coprocessor.
//
// All register traffic goes through a single Bus, shared by the attach
// sequence, the periodic refresh and on-demand requests.
type Device struct {
	cfg config
	msg log.MsgStream
	bus *Bus

	fw  bringup
	ts  tsensor
	sup *supervisor

	life     sync.Mutex // serializes Attach, Suspend, Resume and Close
	attached bool

	rmu sync.Mutex // serializes status and statistics refreshes

	mu     sync.RWMutex // protects the fields below
	id     Identity
	mode   Mode
	guid   GUID
	status LinkStatus
	stats  Stats
}

// New returns a device driving the coprocessor behind bus.
// The device is inert until Attach is called.
func New(bus *Bus, opts ...Option) *Device {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	dev := &Device{
		cfg: cfg,
		msg: cfg.msg,
		bus: bus,
	}
	dev.fw = bringup{bus: bus, msg: cfg.msg, sleep: cfg.sleep}
	dev.ts = tsensor{bus: bus, sleep: cfg.sleep}
	dev.sup = newSupervisor(dev)
	return dev
}

// Attach identifies the coprocessor, brings its firmware up, programs its
// GUID and interface mode, and starts the periodic refresh.
// Firmware and interface mode failures are fatal, GUID failures are not.
func (dev *Device) Attach(ctx context.Context) error {
	dev.life.Lock()
	defer dev.life.Unlock()

	if dev.attached {
		return fmt.Errorf("mxl: device already attached")
	}

	id, err := readIdentity(dev.bus)
	if err != nil {
		return err
	}
	dev.mu.Lock()
	dev.id = id
	dev.mu.Unlock()
	dev.msg.Infof("found %s", id.Version())

	err = dev.fw.run(ctx, id.Chip.Firmware(), dev.cfg.fw)
	if err != nil {
		dev.msg.Errorf("could not bring firmware up: %+v", err)
		return fmt.Errorf("mxl: could not bring firmware up: %w", err)
	}

	pcfg := dev.config()

	err = dev.setupGUID(pcfg.GUID)
	if err != nil {
		dev.msg.Warnf("could not set up GUID: %+v", err)
	}

	err = dev.refreshStatus()
	if err != nil {
		dev.msg.Warnf("could not read initial status: %+v", err)
	}

	err = dev.setupMode(pcfg.Mode)
	if err != nil {
		dev.msg.Errorf("could not configure interface mode: %+v", err)
		return fmt.Errorf("mxl: could not configure interface mode: %w", err)
	}

	dev.attached = true
	dev.sup.start()
	return nil
}

func (dev *Device) config() Config {
	if dev.cfg.cfg == nil {
		return Config{}
	}
	cfg, err := dev.cfg.cfg.Config()
	if err != nil {
		dev.msg.Warnf("could not retrieve configuration: %+v", err)
		return Config{}
	}
	return cfg
}

func (dev *Device) setupGUID(config GUID) error {
	existing, err := readGUID(dev.bus)
	if err != nil {
		dev.msg.Warnf("could not read GUID, treating it as unset: %+v", err)
		existing = GUID{}
	}

	var attached GUID
	if dev.cfg.iface != nil {
		hw, err := dev.cfg.iface.HardwareAddr()
		if err != nil {
			dev.msg.Debugf("no attached interface address: %+v", err)
		}
		attached = hw
	}

	guid, src, err := ResolveGUID(existing, config, attached, dev.cfg.rand)
	if err != nil {
		return err
	}

	if src != GUIDExisting {
		err = commitGUID(dev.bus, guid)
		if err != nil {
			return fmt.Errorf("mxl: could not commit GUID: %w", err)
		}
	}

	dev.mu.Lock()
	dev.guid = guid
	dev.mu.Unlock()
	dev.msg.Infof("GUID %v (%v)", guid, src)
	return nil
}

func (dev *Device) setupMode(configured Mode) error {
	detected, err := readMode(dev.bus)
	if err != nil {
		dev.msg.Warnf("could not read interface mode: %+v", err)
	}
	mode := resolveMode(configured, detected)

	err = writeMode(dev.bus, mode)
	if err != nil {
		return err
	}

	dev.mu.Lock()
	dev.mode = mode
	dev.mu.Unlock()
	dev.msg.Infof("interface mode %v (%d Mbps)", mode, mode.Speed())
	return nil
}

// refresh updates the status and statistics snapshots.
func (dev *Device) refresh() error {
	return errors.Join(dev.refreshStats(), dev.refreshStatus())
}

func (dev *Device) refreshStatus() error {
	dev.rmu.Lock()
	defer dev.rmu.Unlock()

	dev.mu.RLock()
	st := dev.status
	dev.mu.RUnlock()

	err := refreshStatus(dev.bus, &st)

	dev.mu.Lock()
	dev.status = st
	dev.mu.Unlock()
	return err
}

func (dev *Device) refreshStats() error {
	dev.rmu.Lock()
	defer dev.rmu.Unlock()

	dev.mu.RLock()
	st := dev.stats
	dev.mu.RUnlock()

	err := refreshStats(dev.bus, &st)

	dev.mu.Lock()
	dev.stats = st
	dev.mu.Unlock()
	return err
}

// Suspend stops the periodic refresh. It returns once no refresh is in
// flight anymore.
func (dev *Device) Suspend() error {
	dev.life.Lock()
	defer dev.life.Unlock()

	if !dev.attached {
		return errNotAttached
	}
	dev.sup.stop()
	dev.msg.Debugf("suspended")
	return nil
}

// Resume restarts the periodic refresh after a Suspend, according to the
// device resume policy.
func (dev *Device) Resume(ctx context.Context) error {
	dev.life.Lock()
	defer dev.life.Unlock()

	if !dev.attached {
		return errNotAttached
	}
	dev.sup.stop()

	switch dev.cfg.resume {
	case ResumeReload:
		dev.mu.RLock()
		chip := dev.id.Chip
		dev.mu.RUnlock()

		err := dev.fw.run(ctx, chip.Firmware(), dev.cfg.fw)
		if err != nil {
			dev.msg.Errorf("could not reload firmware on resume: %+v", err)
			return fmt.Errorf("mxl: could not reload firmware: %w", err)
		}
	default:
		dev.fw.reset()
	}

	dev.sup.start()
	dev.msg.Debugf("resumed (policy=%v)", dev.cfg.resume)
	return nil
}

// Close stops the periodic refresh.
func (dev *Device) Close() error {
	dev.life.Lock()
	defer dev.life.Unlock()

	dev.sup.stop()
	dev.attached = false
	return nil
}

// Bus returns the register bus of the device.
func (dev *Device) Bus() *Bus { return dev.bus }

// State returns the firmware bring-up state.
func (dev *Device) State() State { return dev.fw.State() }

// Identity returns the identity read at attach time.
func (dev *Device) Identity() Identity {
	dev.mu.RLock()
	defer dev.mu.RUnlock()
	return dev.id
}

// Mode returns the configured interface mode.
func (dev *Device) Mode() Mode {
	dev.mu.RLock()
	defer dev.mu.RUnlock()
	return dev.mode
}

// Status returns the last known link status, without bus access.
func (dev *Device) Status() LinkStatus {
	dev.mu.RLock()
	defer dev.mu.RUnlock()
	return dev.status
}

// Stats returns the last known statistics, without bus access.
func (dev *Device) Stats() Stats {
	dev.mu.RLock()
	defer dev.mu.RUnlock()
	return dev.stats
}

// GUID returns the GUID programmed at attach time or by SetGUID.
func (dev *Device) GUID() GUID {
	dev.mu.RLock()
	defer dev.mu.RUnlock()
	return dev.guid
}

// ReadGUID reads the GUID currently programmed in the coprocessor.
// It returns ErrNoGUID when none is programmed.
func (dev *Device) ReadGUID() (GUID, error) {
	g, err := readGUID(dev.bus)
	if err != nil {
		return GUID{}, fmt.Errorf("mxl: could not read GUID: %w", err)
	}
	if g.IsZero() {
		return GUID{}, ErrNoGUID
	}
	return g, nil
}

// SetGUID programs g into the coprocessor and, when the configuration
// provider supports it, persists it.
func (dev *Device) SetGUID(g GUID) error {
	if g.IsZero() {
		return ErrZeroGUID
	}

	err := commitGUID(dev.bus, g)
	if err != nil {
		return fmt.Errorf("mxl: could not commit GUID: %w", err)
	}

	dev.mu.Lock()
	dev.guid = g
	dev.mu.Unlock()

	if store, ok := dev.cfg.cfg.(GUIDStore); ok {
		err = store.SaveGUID(g)
		if err != nil {
			dev.msg.Warnf("could not persist GUID %v: %+v", g, err)
		}
	}
	return nil
}

// Temperature performs a live measurement and returns the coprocessor
// temperature in millidegrees Celsius.
func (dev *Device) Temperature(ctx context.Context) (int32, error) {
	return dev.ts.read(ctx)
}

// PollLink refreshes the link status and reports whether the link is up.
// The link is reported down without bus access while the firmware is not
// running.
func (dev *Device) PollLink() (bool, error) {
	if dev.fw.State() != Running {
		return false, nil
	}
	err := dev.refreshStatus()
	return dev.Status().Link == LinkUp, err
}

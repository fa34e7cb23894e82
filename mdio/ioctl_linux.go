// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package mdio

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	siocGMIIREG = 0x8948
	siocSMIIREG = 0x8949

	miiPhyIDC45 = 0x8000 // MDIO_PHY_ID_C45
)

// miiIfreq is a struct ifreq carrying a struct mii_ioctl_data.
type miiIfreq struct {
	name   [unix.IFNAMSIZ]byte
	phyID  uint16
	regNum uint16
	valIn  uint16
	valOut uint16
	_      [16]byte // pad the ifreq union to 24 bytes
}

// Ioctl accesses a PHY through the SIOCGMIIREG/SIOCSMIIREG ioctls of the
// network interface it is attached to.
type Ioctl struct {
	fd    int
	iface string
}

// OpenIoctl opens a management socket for the network interface iface.
func OpenIoctl(iface string) (*Ioctl, error) {
	if len(iface) >= unix.IFNAMSIZ {
		return nil, fmt.Errorf("mdio: interface name %q too long", iface)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("mdio: could not open socket for %q: %w", iface, err)
	}
	return &Ioctl{fd: fd, iface: iface}, nil
}

// Close closes the management socket.
func (bus *Ioctl) Close() error {
	if bus.fd < 0 {
		return nil
	}
	err := unix.Close(bus.fd)
	bus.fd = -1
	return err
}

func (bus *Ioctl) ifreq(phyAddr, devAddr uint8, reg uint16) miiIfreq {
	var ifr miiIfreq
	copy(ifr.name[:], bus.iface)
	ifr.phyID = uint16(phyAddr & 0x1f)
	if devAddr != 0 {
		ifr.phyID = miiPhyIDC45 | uint16(phyAddr&0x1f)<<5 | uint16(devAddr&0x1f)
	}
	ifr.regNum = reg
	return ifr
}

func (bus *Ioctl) ioctl(req uintptr, ifr *miiIfreq) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL, uintptr(bus.fd), req,
		uintptr(unsafe.Pointer(ifr)),
	)
	if errno != 0 {
		return errno
	}
	return nil
}

// Read implements phy.MDIOBus.
func (bus *Ioctl) Read(phyAddr, devAddr uint8, reg uint16) (uint16, error) {
	ifr := bus.ifreq(phyAddr, devAddr, reg)
	err := bus.ioctl(siocGMIIREG, &ifr)
	if err != nil {
		return 0, fmt.Errorf("mdio: could not read %s phy=%d reg=0x%x: %w", bus.iface, phyAddr, reg, err)
	}
	return ifr.valOut, nil
}

// Write implements phy.MDIOBus.
func (bus *Ioctl) Write(phyAddr, devAddr uint8, reg, v uint16) error {
	ifr := bus.ifreq(phyAddr, devAddr, reg)
	ifr.valIn = v
	err := bus.ioctl(siocSMIIREG, &ifr)
	if err != nil {
		return fmt.Errorf("mdio: could not write %s phy=%d reg=0x%x: %w", bus.iface, phyAddr, reg, err)
	}
	return nil
}

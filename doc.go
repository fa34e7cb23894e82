// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package moca holds code to drive and supervise MaxLinear MXL371x MoCA
// coprocessors.
//
// The mxl package implements the coprocessor control plane, mdio its
// management bus transports and conddb its persisted configuration.
// Commands under cmd/ expose them as a daemon, a control shell and a
// TDAQ node.
package moca // import "github.com/go-lpc/moca"

import (
	"runtime/debug"
)

const modpath = "github.com/go-lpc/moca"

// Version returns the version of the moca module a binary was built with,
// and its checksum. Both are empty when the binary carries no module
// information or when moca is its main module.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	for _, m := range b.Deps {
		if m.Path != modpath {
			continue
		}
		if r := m.Replace; r != nil {
			switch {
			case r.Version != "":
				return r.Version, r.Sum
			case r.Path != "":
				return r.Path, r.Sum
			}
			return m.Version + "*", ""
		}
		return m.Version, m.Sum
	}
	return "", ""
}

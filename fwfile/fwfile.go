// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fwfile provides coprocessor firmware images from a directory.
package fwfile // import "github.com/go-lpc/moca/fwfile"

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/go-lpc/moca/internal/mmap"
	"github.com/go-lpc/moca/mxl"
)

// DefaultDir is the conventional location of firmware images.
const DefaultDir = "/lib/firmware"

// Dir is a firmware source reading images from a directory.
type Dir string

var _ mxl.FirmwareSource = Dir("")

// Fetch returns the content of the firmware image name.
// Missing images yield an error wrapping mxl.ErrNotFound.
func (dir Dir) Fetch(name string) ([]byte, error) {
	if name == "" || strings.ContainsRune(name, filepath.Separator) || strings.Contains(name, "..") {
		return nil, fmt.Errorf("fwfile: invalid image name %q", name)
	}

	fname := filepath.Join(string(dir), name)
	h, err := mmap.Open(fname)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("fwfile: %q: %w", fname, mxl.ErrNotFound)
		}
		return nil, fmt.Errorf("fwfile: could not open %q: %w", fname, err)
	}
	defer h.Close()

	img, err := h.Bytes()
	if err != nil {
		return nil, fmt.Errorf("fwfile: could not read %q: %w", fname, err)
	}
	return img, nil
}

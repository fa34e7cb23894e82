// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap // import "github.com/go-lpc/moca/internal/mmap"

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestHandle(t *testing.T) {
	t.Run("nil-handle", func(t *testing.T) {
		var h *Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.Bytes()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid bytes error: %+v", err)
		}

		err = h.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var h Handle

		_, err := h.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		_, err = h.Bytes()
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid bytes error: %+v", err)
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("error closing nil-data handle: %+v", err)
		}
	})
}

func TestOpen(t *testing.T) {
	tmp := t.TempDir()

	t.Run("file", func(t *testing.T) {
		fname := filepath.Join(tmp, "ccpu.elf")
		want := []byte("\x7fELF firmware image")
		err := os.WriteFile(fname, want, 0644)
		if err != nil {
			t.Fatalf("could not create file: %+v", err)
		}

		h, err := Open(fname)
		if err != nil {
			t.Fatalf("could not mmap file: %+v", err)
		}
		defer h.Close()

		if got, want := h.Len(), len(want); got != want {
			t.Fatalf("invalid length: got=%d, want=%d", got, want)
		}

		got, err := h.Bytes()
		if err != nil {
			t.Fatalf("could not read mapped bytes: %+v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("invalid content: got=%q, want=%q", got, want)
		}

		buf := make([]byte, 8)
		n, err := h.ReadAt(buf, int64(len(want)-4))
		if !errors.Is(err, io.EOF) || n != 4 {
			t.Fatalf("invalid short read-at: n=%d, err=%+v", n, err)
		}

		_, err = h.ReadAt(buf, -1)
		if err == nil {
			t.Fatalf("expected an error for a negative offset")
		}

		err = h.Close()
		if err != nil {
			t.Fatalf("could not close handle: %+v", err)
		}
		_, err = h.Bytes()
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid error after close: %+v", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		fname := filepath.Join(tmp, "empty")
		err := os.WriteFile(fname, nil, 0644)
		if err != nil {
			t.Fatalf("could not create file: %+v", err)
		}

		h, err := Open(fname)
		if err != nil {
			t.Fatalf("could not mmap empty file: %+v", err)
		}
		defer h.Close()

		got, err := h.Bytes()
		if err != nil || len(got) != 0 {
			t.Fatalf("invalid empty content: %q, %+v", got, err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Open(filepath.Join(tmp, "not-there"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("invalid error: %+v", err)
		}
	})
}

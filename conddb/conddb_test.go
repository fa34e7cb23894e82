// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"

	"github.com/go-lpc/moca/internal/fakedb"
	"github.com/go-lpc/moca/mxl"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open conddb: %+v", err)
	}
	defer db.Close()
}

func TestDeviceConfig(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open conddb: %+v", err)
	}
	defer db.Close()

	for _, tc := range []struct {
		name string
		rows [][]driver.Value
		want mxl.Config
		err  string
	}{
		{
			name: "full",
			rows: [][]driver.Value{{"02:24:3e:01:02:03", "2500base-x"}},
			want: mxl.Config{GUID: mxl.GUID{0x02, 0x24, 0x3e, 1, 2, 3}, Mode: mxl.ModeHSGMII},
		},
		{
			name: "null-guid",
			rows: [][]driver.Value{{nil, "sgmii"}},
			want: mxl.Config{Mode: mxl.ModeSGMII},
		},
		{
			name: "auto",
			rows: [][]driver.Value{{"", "auto"}},
			want: mxl.Config{},
		},
		{
			name: "no-row",
			want: mxl.Config{},
		},
		{
			name: "zero-guid",
			rows: [][]driver.Value{{"00:00:00:00:00:00", "sgmii"}},
			err:  "invalid GUID",
		},
		{
			name: "bad-mode",
			rows: [][]driver.Value{{nil, "10gbase-r"}},
			err:  "invalid interface mode",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _ = fakedb.Run(context.Background(), fakedb.Rows{
				Names:  []string{"guid", "phy_mode"},
				Values: tc.rows,
			}, func(ctx context.Context) error {
				got, err := db.DeviceConfig(ctx, "moca0")
				if tc.err != "" {
					if err == nil || !strings.Contains(err.Error(), tc.err) {
						t.Fatalf("invalid error: got=%+v, want %q", err, tc.err)
					}
					return nil
				}
				if err != nil {
					t.Fatalf("could not retrieve config: %+v", err)
				}
				if got != tc.want {
					t.Fatalf("invalid config: got=%+v, want=%+v", got, tc.want)
				}
				return nil
			})
		})
	}
}

func TestProvider(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open conddb: %+v", err)
	}
	defer db.Close()

	p := db.Provider("moca0")
	guid := mxl.GUID{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}

	execs, err := fakedb.Run(context.Background(), fakedb.Rows{
		Names:  []string{"guid", "phy_mode"},
		Values: [][]driver.Value{{"02:24:3e:01:02:03", "1000base-x"}},
	}, func(ctx context.Context) error {
		return p.SaveGUID(guid)
	})
	if err != nil {
		t.Fatalf("could not save GUID: %+v", err)
	}

	if len(execs) != 1 {
		t.Fatalf("invalid number of statements: %d", len(execs))
	}
	exec := execs[0]
	if !strings.HasPrefix(exec.Query, "INSERT INTO moca_devices") {
		t.Fatalf("invalid statement: %q", exec.Query)
	}
	if len(exec.Args) != 4 {
		t.Fatalf("invalid number of arguments: %d", len(exec.Args))
	}
	if got, want := exec.Args[0], driver.Value("moca0"); got != want {
		t.Fatalf("invalid name: got=%v, want=%v", got, want)
	}
	if got, want := exec.Args[1], driver.Value(guid.String()); got != want {
		t.Fatalf("invalid guid: got=%v, want=%v", got, want)
	}
	if got, want := exec.Args[2], driver.Value("1000base-x"); got != want {
		t.Fatalf("invalid mode: got=%v, want=%v", got, want)
	}
}

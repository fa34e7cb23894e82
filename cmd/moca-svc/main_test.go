// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/moca/mdio"
	"github.com/go-lpc/moca/mxl"
)

func getTCPPort() (string, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return "", err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return "", err
	}
	defer l.Close()
	return strconv.Itoa(l.Addr().(*net.TCPAddr).Port), nil
}

func TestRun(t *testing.T) {
	tmp := t.TempDir()
	fw := filepath.Join(tmp, "firmware")
	err := os.Mkdir(fw, 0755)
	if err != nil {
		t.Fatalf("could not create firmware dir: %+v", err)
	}
	err = os.WriteFile(filepath.Join(fw, "ccpu.elf.leucadia"), make([]byte, 1024), 0644)
	if err != nil {
		t.Fatalf("could not create firmware image: %+v", err)
	}

	port, err := getTCPPort()
	if err != nil {
		t.Fatalf("could not find a tcp port: %+v", err)
	}

	cfg := config{
		mdio:    "sim",
		phy:     -1,
		addr:    "localhost:" + port,
		fw:      fw,
		name:    "moca-test",
		guid:    "02:24:3e:00:00:01",
		mode:    "hsgmii",
		resume:  "redetect",
		freq:    10 * time.Millisecond,
		csv:     filepath.Join(tmp, "stats.csv"),
		csvFreq: 10 * time.Millisecond,
	}

	stop := make(chan os.Signal, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- run(cfg, stop)
	}()

	var cli *mxl.Client
	timeout := time.After(10 * time.Second)
loop:
	for {
		select {
		case err := <-errc:
			t.Fatalf("moca-svc stopped early: %+v", err)
		case <-timeout:
			t.Fatalf("could not connect to moca-svc")
		default:
			cli, err = mxl.Dial(cfg.addr)
			if err == nil {
				break loop
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	defer cli.Close()

	for _, tc := range []struct {
		attr string
		want string
	}{
		{"moca_guid", "02:24:3e:00:00:01"},
		{"moca_chip_type", "leucadia"},
		{"moca_fw_version", "Leucadia Device 0x3710 Rev 0x0001"},
	} {
		var got string
		err = cli.Do(&got, "show", tc.attr)
		if err != nil {
			t.Fatalf("could not show %q: %+v", tc.attr, err)
		}
		if got != tc.want {
			t.Fatalf("invalid %s: got=%q, want=%q", tc.attr, got, tc.want)
		}
	}

	var state string
	err = cli.Do(&state, "state")
	if err != nil {
		t.Fatalf("could not read state: %+v", err)
	}
	if state != "running" {
		t.Fatalf("invalid state: %q", state)
	}

	var temp int32
	err = cli.Do(&temp, "temp")
	if err != nil {
		t.Fatalf("could not read temperature: %+v", err)
	}
	if temp < 35000 || temp > 45000 {
		t.Fatalf("invalid temperature: %d", temp)
	}

	stop <- os.Interrupt

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("could not run moca-svc: %+v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("moca-svc did not stop")
	}

	raw, err := os.ReadFile(cfg.csv)
	if err != nil {
		t.Fatalf("could not read statistics file: %+v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if !strings.HasPrefix(lines[0], "# time;state;link;") {
		t.Fatalf("invalid header: %q", lines[0])
	}
	if len(lines) < 2 {
		t.Fatalf("no statistics recorded")
	}
	row := strings.Split(lines[len(lines)-1], ";")
	if got, want := len(row), len(recorderColumns); got != want {
		t.Fatalf("invalid number of columns: got=%d, want=%d", got, want)
	}
	if row[1] != "running" {
		t.Fatalf("invalid recorded state: %q", row[1])
	}
}

func TestRunFail(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  config
		want string
	}{
		{
			name: "bad-mdio",
			cfg:  config{mdio: "usb:0"},
			want: "could not open management bus",
		},
		{
			name: "bad-phy",
			cfg:  config{mdio: "sim", phy: 32},
			want: "invalid PHY address",
		},
		{
			name: "bad-guid",
			cfg:  config{mdio: "sim", phy: 0, guid: "02:24:3e", resume: "redetect"},
			want: "could not parse -guid",
		},
		{
			name: "no-firmware",
			cfg: config{
				mdio: "sim", phy: 0, fw: t.TempDir(), resume: "redetect",
				freq: time.Second, csvFreq: time.Second,
			},
			want: "could not attach device",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.cfg, make(chan os.Signal, 1))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("invalid error: got=%+v, want %q", err, tc.want)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  config
		fail bool
	}{
		{name: "defaults", cfg: config{}},
		{name: "static", cfg: config{guid: "02:24:3e:aa:bb:cc", mode: "1000base-x", resume: "reload", iface: "eth0", verbose: true}},
		{name: "bad-resume", cfg: config{resume: "reboot"}, fail: true},
		{name: "bad-mode", cfg: config{mode: "10gbase-r"}, fail: true},
		{name: "zero-guid", cfg: config{guid: "00:00:00:00:00:00"}, fail: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opts, closer, err := tc.cfg.options()
			if tc.fail {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("could not build options: %+v", err)
			}
			defer closer()
			if len(opts) == 0 {
				t.Fatalf("no options")
			}
		})
	}
}

func TestFindPHY(t *testing.T) {
	sim := mdio.NewSim()

	addr, model, err := findPHY(sim, -1)
	if err != nil {
		t.Fatalf("could not find PHY: %+v", err)
	}
	if addr != 0 || !strings.Contains(model, "MXL3710") {
		t.Fatalf("invalid PHY: addr=%d, model=%q", addr, model)
	}

	addr, _, err = findPHY(sim, 5)
	if err != nil {
		t.Fatalf("could not probe PHY: %+v", err)
	}
	if addr != 5 {
		t.Fatalf("invalid PHY address: %d", addr)
	}

	sim.SetPHYID(0x001cc916)
	_, _, err = findPHY(sim, -1)
	if err == nil {
		t.Fatalf("expected an error for a foreign PHY")
	}
}

func TestWatcher(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "stats.csv")
	rec, err := newRecorder(fname)
	if err != nil {
		t.Fatalf("could not create recorder: %+v", err)
	}

	dev := mxl.New(mxl.NewBus(mdio.NewSim(), 0))
	w := watcher{name: "moca-test", dev: dev, rec: rec, alerts: &mailer{}}

	w.link = mxl.LinkUp
	for i := 0; i < 3; i++ {
		w.check(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	}
	if w.count != 1 {
		t.Fatalf("invalid number of alerts: got=%d, want=1", w.count)
	}
	if w.link != mxl.LinkDown {
		t.Fatalf("invalid link state: %v", w.link)
	}

	err = rec.Close()
	if err != nil {
		t.Fatalf("could not close recorder: %+v", err)
	}

	raw, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("could not read statistics file: %+v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if got, want := len(lines), 1+3; got != want {
		t.Fatalf("invalid number of lines: got=%d, want=%d", got, want)
	}
	want := "2025-01-02T03:04:05Z;not-started;down;0;0;0;0;0;0;0;0;0;0"
	if lines[1] != want {
		t.Fatalf("invalid row:\ngot= %q\nwant=%q", lines[1], want)
	}
}

func TestVersion(t *testing.T) {
	// test binaries carry no module version for their main module.
	if got, want := version(), "(devel)"; got != want {
		t.Fatalf("invalid version: got=%q, want=%q", got, want)
	}
}

func TestRunWarm(t *testing.T) {
	port, err := getTCPPort()
	if err != nil {
		t.Fatalf("could not find a tcp port: %+v", err)
	}

	cfg := config{
		mdio:    "sim:warm",
		phy:     -1,
		addr:    "localhost:" + port,
		fw:      t.TempDir(), // no image needed
		name:    "moca-test",
		mode:    "auto",
		resume:  "redetect",
		freq:    10 * time.Millisecond,
		csvFreq: 10 * time.Millisecond,
	}

	stop := make(chan os.Signal, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- run(cfg, stop)
	}()

	var cli *mxl.Client
	timeout := time.After(10 * time.Second)
loop:
	for {
		select {
		case err := <-errc:
			t.Fatalf("moca-svc stopped early: %+v", err)
		case <-timeout:
			t.Fatalf("could not connect to moca-svc")
		default:
			cli, err = mxl.Dial(cfg.addr)
			if err == nil {
				break loop
			}
			time.Sleep(50 * time.Millisecond)
		}
	}

	var state string
	err = cli.Do(&state, "state")
	cli.Close()
	if err != nil {
		t.Fatalf("could not read state: %+v", err)
	}
	if state != "running" {
		t.Fatalf("invalid state: %q", state)
	}

	stop <- os.Interrupt
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("could not run moca-svc: %+v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("moca-svc did not stop")
	}
}

func TestMailer(t *testing.T) {
	m := &mailer{usr: "daq@example.org", pwd: "s3cr3t", srv: "smtp.example.org", port: 587}
	if m.valid() {
		t.Fatalf("mailer without targets should be invalid")
	}
	m.tgts = []string{"shifter@example.org"}
	if !m.valid() {
		t.Fatalf("mailer should be valid")
	}

	buf := new(bytes.Buffer)
	_, err := m.message("[moca-svc] moca0: link lost", "link: down").WriteTo(buf)
	if err != nil {
		t.Fatalf("could not write message: %+v", err)
	}
	for _, want := range []string{
		"From: daq@example.org",
		"Subject: [moca-svc] moca0: link lost",
		"link: down",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("message does not contain %q:\n%s", want, buf.String())
		}
	}

	if got := atoi("nope"); got != 0 {
		t.Fatalf("invalid atoi: %d", got)
	}
}

// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command moca-svc attaches to a MXL371x MoCA coprocessor, keeps its
// firmware, status and statistics under supervision and serves its control
// surface over TCP.
//
// Example:
//
//	$> moca-svc -mdio mii:eth1 -iface eth1 -addr :8877 -csv /var/log/moca.csv
package main // import "github.com/go-lpc/moca/cmd/moca-svc"

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/moca"
	"github.com/go-lpc/moca/conddb"
	"github.com/go-lpc/moca/fwfile"
	"github.com/go-lpc/moca/mdio"
	"github.com/go-lpc/moca/mxl"
	"github.com/sbinet/pmon"
	"github.com/soypat/lneto/phy"
	"go-hep.org/x/hep/csvutil"
	"golang.org/x/sync/errgroup"
	mail "gopkg.in/gomail.v2"
)

var stop = make(chan os.Signal, 1)

func main() {
	var cfg config

	flag.StringVar(&cfg.mdio, "mdio", "sim:warm", "management bus (sim, sim:warm, mii:<iface>, smbus:<bus>:<addr>)")
	flag.IntVar(&cfg.phy, "phy", -1, "PHY address on the management bus (-1: scan)")
	flag.StringVar(&cfg.addr, "addr", ":8877", "[ip]:port to listen on")
	flag.StringVar(&cfg.fw, "fw", fwfile.DefaultDir, "firmware directory")
	flag.StringVar(&cfg.db, "db", "", "condition database name (empty: use -guid and -mode)")
	flag.StringVar(&cfg.name, "name", "moca0", "device name in the condition database")
	flag.StringVar(&cfg.iface, "iface", "", "host network interface attached to the coprocessor")
	flag.StringVar(&cfg.guid, "guid", "", "GUID to program when none is set (xx:xx:xx:xx:xx:xx)")
	flag.StringVar(&cfg.mode, "mode", "auto", "host interface mode (auto, sgmii, hsgmii, 1000base-x)")
	flag.StringVar(&cfg.resume, "resume", "redetect", "resume policy (redetect, reload)")
	flag.DurationVar(&cfg.freq, "freq", 1*time.Second, "status and statistics refresh interval")
	flag.StringVar(&cfg.csv, "csv", "", "record statistics to this CSV file")
	flag.DurationVar(&cfg.csvFreq, "csv-freq", 10*time.Second, "statistics recording and link watch interval")
	flag.StringVar(&cfg.pmon, "pmon", "", "record pmon self-monitoring data to this file")
	flag.BoolVar(&cfg.verbose, "v", false, "enable verbose mode")
	vers := flag.Bool("version", false, "display version and exit")

	flag.Parse()

	log.SetPrefix("moca-svc: ")
	log.SetFlags(0)

	if *vers {
		fmt.Println(version())
		return
	}
	log.Printf("moca-svc %s", version())

	err := run(cfg, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type config struct {
	mdio   string
	phy    int
	addr   string
	fw     string
	db     string
	name   string
	iface  string
	guid   string
	mode   string
	resume string
	freq   time.Duration

	csv     string
	csvFreq time.Duration
	pmon    string
	verbose bool
}

func run(cfg config, stop chan os.Signal) error {
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	alerts := newMailer()

	if cfg.pmon != "" {
		err := monitor(cfg.pmon, cfg.freq)
		if err != nil {
			return err
		}
	}

	bus, closeBus, err := mdio.Open(cfg.mdio)
	if err != nil {
		return fmt.Errorf("could not open management bus: %w", err)
	}
	defer closeBus()

	paddr, model, err := findPHY(bus, cfg.phy)
	if err != nil {
		return err
	}
	log.Printf("found %s at PHY address %d", model, paddr)

	opts, closeOpts, err := cfg.options()
	if err != nil {
		return err
	}
	defer closeOpts()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			log.Printf("received stop signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	dev := mxl.New(mxl.NewBus(bus, paddr), opts...)
	err = dev.Attach(ctx)
	if err != nil {
		alerts.send(
			fmt.Sprintf("[moca-svc] %s: bring-up failure", cfg.name),
			fmt.Sprintf("device: %s\nbus: %s\nerror: %+v", cfg.name, cfg.mdio, err),
		)
		return fmt.Errorf("could not attach device: %w", err)
	}
	defer dev.Close()
	log.Printf("attached %s (GUID=%v, mode=%v)", dev.Identity().Version(), dev.GUID(), dev.Mode())

	srv, err := mxl.NewServer(cfg.addr, dev)
	if err != nil {
		return fmt.Errorf("could not create control server: %w", err)
	}
	log.Printf("serving control surface on %q...", srv.Addr())

	var rec *recorder
	if cfg.csv != "" {
		rec, err = newRecorder(cfg.csv)
		if err != nil {
			_ = srv.Close()
			return err
		}
		defer rec.Close()
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(srv.Serve)
	grp.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})
	grp.Go(func() error {
		w := watcher{name: cfg.name, dev: dev, rec: rec, alerts: alerts}
		return w.run(ctx, cfg.csvFreq)
	})

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not run moca-svc: %w", err)
	}
	return nil
}

func (cfg config) options() ([]mxl.Option, func() error, error) {
	lvl := tlog.LvlInfo
	if cfg.verbose {
		lvl = tlog.LvlDebug
	}

	resume, err := mxl.ParseResumePolicy(cfg.resume)
	if err != nil {
		return nil, nil, err
	}

	opts := []mxl.Option{
		mxl.WithMsgStream(tlog.NewMsgStream(cfg.name, lvl, os.Stdout)),
		mxl.WithRefreshInterval(cfg.freq),
		mxl.WithResumePolicy(resume),
		mxl.WithFirmwareSource(fwfile.Dir(cfg.fw)),
	}
	if cfg.iface != "" {
		opts = append(opts, mxl.WithAttachedInterface(mxl.NetInterface(cfg.iface)))
	}

	if cfg.db != "" {
		db, err := conddb.Open(cfg.db)
		if err != nil {
			return nil, nil, fmt.Errorf("could not open condition database: %w", err)
		}
		opts = append(opts, mxl.WithConfigProvider(db.Provider(cfg.name)))
		return opts, db.Close, nil
	}

	var static mxl.Config
	if cfg.guid != "" {
		static.GUID, err = mxl.ParseGUID(cfg.guid)
		if err != nil {
			return nil, nil, fmt.Errorf("could not parse -guid: %w", err)
		}
	}
	static.Mode, err = mxl.ParseMode(cfg.mode)
	if err != nil {
		return nil, nil, fmt.Errorf("could not parse -mode: %w", err)
	}
	opts = append(opts, mxl.WithConfigProvider(mxl.StaticConfig(static)))
	return opts, func() error { return nil }, nil
}

// version returns the module version moca-svc was built from.
func version() string {
	v, sum := moca.Version()
	switch {
	case v == "":
		return "(devel)"
	case sum == "":
		return v
	default:
		return v + " " + sum
	}
}

// findPHY returns the PHY address of the coprocessor and its model.
// A negative addr scans the whole clause-22 address space.
func findPHY(bus phy.MDIOBus, addr int) (uint8, string, error) {
	var cands []uint8
	switch {
	case addr > 31:
		return 0, "", fmt.Errorf("invalid PHY address %d", addr)
	case addr >= 0:
		cands = []uint8{uint8(addr)}
	default:
		var addrs [32]uint8
		n, err := phy.FindClause22PHYs(bus, addrs[:])
		if err != nil {
			return 0, "", fmt.Errorf("could not scan management bus: %w", err)
		}
		cands = addrs[:n]
	}

	for _, a := range cands {
		model, err := mxl.Probe(mxl.NewBus(bus, a))
		if err != nil {
			continue
		}
		return a, model, nil
	}
	return 0, "", fmt.Errorf("could not find a MXL371x PHY on the management bus")
}

// monitor records the resource usage of the current process into fname,
// for the remaining life of the process.
func monitor(fname string, freq time.Duration) error {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return fmt.Errorf("could not start self-monitoring: %w", err)
	}
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		defer f.Close()
		log.Printf("run pmon %q...", filepath.Base(os.Args[0]))
		err := p.Run()
		if err != nil {
			log.Printf("could not run self-monitoring: %+v", err)
		}
	}()

	return nil
}

// recorder appends periodic snapshots of the device statistics to a
// semicolon-separated CSV file.
type recorder struct {
	tbl *csvutil.Table
}

var recorderColumns = []string{
	"time", "state", "link", "phy_rate",
	"tx_packets", "tx_bytes", "tx_dropped", "tx_broadcast", "tx_multicast",
	"rx_packets", "rx_bytes", "rx_dropped", "rx_errors",
}

func newRecorder(fname string) (*recorder, error) {
	tbl, err := csvutil.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("could not create statistics file %q: %w", fname, err)
	}
	tbl.Writer.Comma = ';'

	err = tbl.WriteHeader("# " + strings.Join(recorderColumns, ";") + "\n")
	if err != nil {
		_ = tbl.Close()
		return nil, fmt.Errorf("could not write statistics header: %w", err)
	}
	return &recorder{tbl: tbl}, nil
}

func (rec *recorder) record(now time.Time, dev *mxl.Device) error {
	var (
		st = dev.Status()
		vs = dev.Stats()
	)
	err := rec.tbl.WriteRow(
		now.UTC().Format(time.RFC3339), dev.State().String(),
		st.Link.String(), st.PHYRate,
		vs.TxPackets, vs.TxBytes, vs.TxDropped, vs.TxBroadcast, vs.TxMulticast,
		vs.RxPackets, vs.RxBytes, vs.RxDropped, vs.RxErrors,
	)
	if err != nil {
		return fmt.Errorf("could not record statistics: %w", err)
	}
	return nil
}

func (rec *recorder) Close() error {
	return rec.tbl.Close()
}

// watcher periodically records the device statistics and raises an alert
// when the MoCA link goes down.
type watcher struct {
	name   string
	dev    *mxl.Device
	rec    *recorder
	alerts *mailer

	link  mxl.LinkState
	count int // number of link-loss alerts sent so far
}

const maxAlerts = 5

func (w *watcher) run(ctx context.Context, freq time.Duration) error {
	tick := time.NewTicker(freq)
	defer tick.Stop()

	w.link = w.dev.Status().Link
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-tick.C:
			w.check(now)
		}
	}
}

func (w *watcher) check(now time.Time) {
	if w.rec != nil {
		err := w.rec.record(now, w.dev)
		if err != nil {
			log.Printf("%+v", err)
		}
	}

	link := w.dev.Status().Link
	if w.link == mxl.LinkUp && link != mxl.LinkUp {
		log.Printf("MoCA link lost (state=%v)", link)
		w.count++
		if w.count <= maxAlerts {
			w.alerts.send(
				fmt.Sprintf("[moca-svc] %s: link lost", w.name),
				fmt.Sprintf("device: %s\nlink: %v\ntime: %v", w.name, link, now.UTC()),
			)
		}
	}
	w.link = link
}

// mailer sends e-mail alerts with the credentials taken from the
// environment.
type mailer struct {
	usr  string
	pwd  string
	srv  string
	port int
	tgts []string
}

func newMailer() *mailer {
	m := &mailer{
		usr:  os.Getenv("MAIL_USERNAME"),
		pwd:  os.Getenv("MAIL_PASSWORD"),
		srv:  os.Getenv("MAIL_SERVER"),
		port: atoi(os.Getenv("MAIL_PORT")),
	}
	if tgts := os.Getenv("MAIL_TGTS"); tgts != "" {
		m.tgts = strings.Split(tgts, ",")
	}
	return m
}

func (m *mailer) valid() bool {
	return m.usr != "" && m.pwd != "" && m.srv != "" && m.port != 0 && len(m.tgts) != 0
}

func (m *mailer) message(subject, body string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.usr)
	msg.SetHeader("Bcc", m.tgts...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

func (m *mailer) send(subject, body string) {
	if !m.valid() {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	dial := mail.NewDialer(m.srv, m.port, m.usr, m.pwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(m.message(subject, body))
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command moca-ctl controls a running moca-svc daemon, either with a single
// command given on the command line or through an interactive shell.
//
// Example:
//
//	$> moca-ctl -addr localhost:8877 show moca_link_status
//	up
//	$> moca-ctl -addr localhost:8877
//	moca> store moca_guid 02:24:3e:00:00:01
//	moca> attrs
//	[...]
package main // import "github.com/go-lpc/moca/cmd/moca-ctl"

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-lpc/moca/mxl"
	"github.com/peterh/liner"
)

func main() {
	addr := flag.String("addr", "localhost:8877", "moca-svc [ip]:port to connect to")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `moca-ctl controls a running moca-svc daemon.

Usage: moca-ctl [options] [command [args...]]

Commands:
%s
Options:
`, usage())
		flag.PrintDefaults()
	}

	flag.Parse()

	log.SetPrefix("moca-ctl: ")
	log.SetFlags(0)

	cli, err := mxl.Dial(*addr)
	if err != nil {
		log.Fatalf("could not connect to moca-svc: %+v", err)
	}
	defer cli.Close()

	ctl := &shell{cli: cli, w: os.Stdout}
	if flag.NArg() > 0 {
		err = ctl.exec(flag.Args())
		if err != nil {
			log.Fatalf("%+v", err)
		}
		return
	}

	err = ctl.run()
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

var cmds = []struct {
	name string
	args string
	help string
}{
	{"show", "<attr>", "display the value of an attribute"},
	{"store", "<attr> <value>", "set the value of a writable attribute"},
	{"attrs", "", "display all attributes"},
	{"stats", "", "display the PHY statistics"},
	{"state", "", "display the firmware bring-up state"},
	{"temp", "", "measure the die temperature (millidegrees Celsius)"},
	{"poll", "", "refresh and display the link state"},
	{"suspend", "", "stop the periodic refresh"},
	{"resume", "", "restart the periodic refresh"},
	{"r32", "<addr>", "read a 32-bit coprocessor register"},
	{"w32", "<addr> <value>", "write a 32-bit coprocessor register"},
	{"help", "", "display this help message"},
	{"quit", "", "leave the shell"},
}

func usage() string {
	o := new(strings.Builder)
	for _, c := range cmds {
		fmt.Fprintf(o, "  %-24s %s\n", strings.TrimSpace(c.name+" "+c.args), c.help)
	}
	return o.String()
}

type shell struct {
	cli *mxl.Client
	w   io.Writer
}

func (sh *shell) run() error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	hist := historyFile()
	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("moca> ")
		switch {
		case err == nil:
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			fmt.Fprintln(sh.w)
			return nil
		default:
			return fmt.Errorf("could not read command: %w", err)
		}

		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		term.AppendHistory(line)

		switch args[0] {
		case "quit", "exit":
			return nil
		}

		err = sh.exec(args)
		if err != nil {
			fmt.Fprintf(sh.w, "error: %+v\n", err)
		}
	}
}

func historyFile() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, ".moca-ctl_history")
}

// exec runs a single command against the daemon and displays its result.
func (sh *shell) exec(args []string) error {
	name := args[0]
	if name == "help" {
		fmt.Fprint(sh.w, usage())
		return nil
	}

	var raw json.RawMessage
	err := sh.cli.Do(&raw, name, args[1:]...)
	if err != nil {
		return err
	}
	return display(sh.w, raw)
}

func display(w io.Writer, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	err := dec.Decode(&v)
	if err != nil {
		return fmt.Errorf("could not decode reply: %w", err)
	}

	switch v := v.(type) {
	case string:
		fmt.Fprintln(w, v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		width := 0
		for k := range v {
			keys = append(keys, k)
			if len(k) > width {
				width = len(k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-*s %v\n", width, k, v[k])
		}
	default:
		fmt.Fprintln(w, string(raw))
	}
	return nil
}

// complete completes command names, then attribute names.
func complete(line string) []string {
	var (
		out    []string
		fields = strings.Fields(line)
	)

	switch {
	case len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(line, " ")):
		prefix := ""
		if len(fields) == 1 {
			prefix = fields[0]
		}
		for _, c := range cmds {
			if strings.HasPrefix(c.name, prefix) {
				out = append(out, c.name+" ")
			}
		}

	case fields[0] == "show" || fields[0] == "store":
		prefix := ""
		if len(fields) == 2 && !strings.HasSuffix(line, " ") {
			prefix = fields[1]
		}
		if len(fields) > 2 || (len(fields) == 2 && prefix == "") {
			return nil
		}
		for _, name := range mxl.Attrs() {
			if strings.HasPrefix(name, prefix) {
				out = append(out, fields[0]+" "+name+" ")
			}
		}
	}
	return out
}

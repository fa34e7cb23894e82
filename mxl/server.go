// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/go-daq/tdaq/log"
)

// Request is a control request sent to a Server.
type Request struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
}

// Reply is the reply of a Server to a Request.
type Reply struct {
	Msg   string          `json:"msg"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Server exposes a device over newline-delimited JSON on TCP.
type Server struct {
	ctl net.Listener
	msg log.MsgStream
	dev *Device

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer creates a control server for dev listening on addr.
func NewServer(addr string, dev *Device) (*Server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mxl: could not create control server on %q: %w", addr, err)
	}

	return &Server{
		ctl:   ctl,
		msg:   dev.msg,
		dev:   dev,
		conns: make(map[net.Conn]struct{}),
	}, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() net.Addr { return srv.ctl.Addr() }

// Serve accepts and serves connections until the server is closed.
// Serve returns nil once Close has been called.
func (srv *Server) Serve() error {
	defer srv.wg.Wait()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("mxl: could not accept connection: %w", err)
		}

		srv.mu.Lock()
		srv.conns[conn] = struct{}{}
		srv.mu.Unlock()

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.handle(conn)
		}()
	}
}

// Close stops accepting new connections and closes the active ones.
func (srv *Server) Close() error {
	err := srv.ctl.Close()

	srv.mu.Lock()
	for conn := range srv.conns {
		_ = conn.Close()
	}
	srv.mu.Unlock()

	return err
}

func (srv *Server) handle(conn net.Conn) {
	defer func() {
		srv.mu.Lock()
		delete(srv.conns, conn)
		srv.mu.Unlock()
		_ = conn.Close()
	}()
	srv.msg.Debugf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Debugf("serving %v... [done]", conn.RemoteAddr())

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)
	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			srv.msg.Warnf("could not decode command request: %+v", err)
			srv.reply(enc, nil, err)
			return
		}
		srv.msg.Debugf("received request: name=%q", req.Name)

		v, err := srv.dispatch(req)
		if err != nil {
			srv.msg.Warnf("could not run %q: %+v", req.Name, err)
		}
		srv.reply(enc, v, err)
	}
}

func (srv *Server) dispatch(req Request) (any, error) {
	var (
		dev = srv.dev
		ctx = context.Background()
	)

	nargs := func(n int) error {
		if len(req.Args) != n {
			return fmt.Errorf("command %q takes %d argument(s), got %d", req.Name, n, len(req.Args))
		}
		return nil
	}

	switch strings.ToLower(req.Name) {
	case "show":
		if err := nargs(1); err != nil {
			return nil, err
		}
		return dev.Attr(ctx, req.Args[0])

	case "store":
		if err := nargs(2); err != nil {
			return nil, err
		}
		return nil, dev.Store(req.Args[0], req.Args[1])

	case "attrs":
		vs := make(map[string]string, len(attrs))
		for _, a := range attrs {
			v, err := a.show(dev)
			if err != nil {
				return nil, fmt.Errorf("could not read %q: %w", a.name, err)
			}
			vs[a.name] = v
		}
		return vs, nil

	case "stats":
		return dev.Stats().PHYStats(), nil

	case "state":
		return dev.State().String(), nil

	case "temp":
		return dev.Temperature(ctx)

	case "poll":
		return dev.PollLink()

	case "suspend":
		return nil, dev.Suspend()

	case "resume":
		return nil, dev.Resume(ctx)

	case "r32":
		if err := nargs(1); err != nil {
			return nil, err
		}
		addr, err := parseU32(req.Args[0])
		if err != nil {
			return nil, err
		}
		v, err := dev.Bus().Read32(addr)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("0x%08x", v), nil

	case "w32":
		if err := nargs(2); err != nil {
			return nil, err
		}
		addr, err := parseU32(req.Args[0])
		if err != nil {
			return nil, err
		}
		v, err := parseU32(req.Args[1])
		if err != nil {
			return nil, err
		}
		return nil, dev.Bus().Write32(addr, v)

	default:
		return nil, fmt.Errorf("unknown command %q", req.Name)
	}
}

func (srv *Server) reply(enc *json.Encoder, v any, err error) {
	rep := Reply{Msg: "ok"}
	if err != nil {
		rep.Msg = fmt.Sprintf("%+v", err)
	}
	if err == nil && v != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			rep.Msg = fmt.Sprintf("could not encode reply: %+v", err)
		}
		rep.Value = raw
	}

	_ = enc.Encode(rep)
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("could not parse %q: %w", s, err)
	}
	return uint32(v), nil
}

// Client is a connection to a control Server.
type Client struct {
	conn net.Conn
	dec  *json.Decoder
	enc  *json.Encoder
}

// Dial connects to the control server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mxl: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		dec:  json.NewDecoder(conn),
		enc:  json.NewEncoder(conn),
	}, nil
}

// Close closes the connection to the server.
func (c *Client) Close() error { return c.conn.Close() }

// Do sends the named command and decodes the reply value into v, if v is
// not nil.
func (c *Client) Do(v any, name string, args ...string) error {
	err := c.enc.Encode(Request{Name: name, Args: args})
	if err != nil {
		return fmt.Errorf("mxl: could not send %q request: %w", name, err)
	}

	var rep Reply
	err = c.dec.Decode(&rep)
	if err != nil {
		return fmt.Errorf("mxl: could not read %q reply: %w", name, err)
	}
	if rep.Msg != "ok" {
		return fmt.Errorf("mxl: %s: %s", name, rep.Msg)
	}
	if v == nil || len(rep.Value) == 0 {
		return nil
	}
	err = json.Unmarshal(rep.Value, v)
	if err != nil {
		return fmt.Errorf("mxl: could not decode %q reply: %w", name, err)
	}
	return nil
}

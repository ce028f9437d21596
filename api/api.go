/*
Copyright (C) 2018 Daniel Morandini

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as
published by the Free Software Foundation, either version 3 of the
License, or (at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package api exposes the head to the outside world over HTTP: a JSON-RPC
// 2.0 service on /rpc to drive the players, and a websocket stream on
// /monitor reporting what happens to them.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/protocol"
	"github.com/danielmorandini/medusa/status"
	"github.com/danielmorandini/medusa/transport"
)

// ServiceName is the name of the JSON-RPC service, whose methods are
// called as "Head.<Method>".
const ServiceName = "Head"

// Paths served.
const (
	PathRPC     = "/rpc"
	PathMonitor = "/monitor"
)

// Transport is the part of a transport used by the api.
type Transport interface {
	Call(names []string, method string, args ...interface{}) bool
	Peers() []string
	Notify(f func(transport.Event)) (int, error)
	StopNotifying(index int)
}

// Server serves the head's api.
type Server struct {
	tr    Transport
	store *status.Store
	mux   *http.ServeMux
}

// New returns a server controlling the players reachable through tr.
func New(tr Transport, store *status.Store) (*Server, error) {
	if store == nil {
		store = status.New()
	}

	r := rpc.NewServer()
	r.RegisterCodec(json2.NewCodec(), "application/json")
	if err := r.RegisterService(&Head{tr: tr, store: store}, ServiceName); err != nil {
		return nil, fmt.Errorf("api: %v", err)
	}

	s := &Server{
		tr:    tr,
		store: store,
		mux:   http.NewServeMux(),
	}
	s.mux.Handle(PathRPC, r)
	s.mux.HandleFunc(PathMonitor, s.monitor)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves the api on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	log.Info.Printf("api: listening on %v", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: %v", err)
	}
	return nil
}

// Head is the JSON-RPC service.
type Head struct {
	tr    Transport
	store *status.Store
}

// SendArgs are the arguments of Head.Send.
type SendArgs struct {
	Names  []string      `json:"names"`
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}

// Reply tells whether a call was handed to the transport.
type Reply struct {
	OK bool `json:"ok"`
}

// Send sends a raw remote call to the named players.
func (h *Head) Send(r *http.Request, args *SendArgs, reply *Reply) error {
	if args.Method == "" {
		return errors.New("method is required")
	}
	if len(args.Names) == 0 {
		return errors.New("at least one name is required")
	}

	reply.OK = h.tr.Call(args.Names, args.Method, args.Args...)
	return nil
}

// ActionArgs are the arguments of Head.Action.
type ActionArgs struct {
	Name   string        `json:"name"`
	Action string        `json:"action"`
	Args   []interface{} `json:"args"`
}

// Action asks a player to perform an action. Playing or stopping media
// empties the player's queue first.
func (h *Head) Action(r *http.Request, args *ActionArgs, reply *Reply) error {
	if args.Name == "" || args.Action == "" {
		return errors.New("name and action are required")
	}
	names := []string{args.Name}

	if args.Action == "play" || args.Action == "stop" {
		if !h.tr.Call(names, protocol.MethodAction, "empty_queue", []interface{}{}) {
			return nil
		}
	}

	a := args.Args
	if a == nil {
		a = []interface{}{}
	}
	reply.OK = h.tr.Call(names, protocol.MethodAction, args.Action, a)
	return nil
}

// PeersArgs are the arguments of Head.Peers.
type PeersArgs struct {
	// Active selects only the players with some media loaded.
	Active bool `json:"active"`
}

// PeersReply lists the connected players.
type PeersReply struct {
	Peers []string `json:"peers"`
}

// Peers lists the connected players.
func (h *Head) Peers(r *http.Request, args *PeersArgs, reply *PeersReply) error {
	reply.Peers = []string{}
	for _, name := range h.tr.Peers() {
		if args.Active && !h.store.Active(name) {
			continue
		}
		reply.Peers = append(reply.Peers, name)
	}
	return nil
}

// StatusArgs are the arguments of Head.Status.
type StatusArgs struct {
	Name string `json:"name"`
}

// StatusReply holds the last status pushed by a player, empty if it never
// pushed one.
type StatusReply struct {
	Status map[string]interface{} `json:"status"`
}

// Status returns the last status pushed by a player.
func (h *Head) Status(r *http.Request, args *StatusArgs, reply *StatusReply) error {
	m, ok := h.store.Get(args.Name)
	if !ok {
		m = map[string]interface{}{}
	}
	reply.Status = m
	return nil
}

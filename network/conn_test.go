package network_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/danielmorandini/medusa/codec"
	"github.com/danielmorandini/medusa/network"
	"github.com/danielmorandini/medusa/protocol"
)

type conn struct {
	server net.Conn
	client net.Conn
}

func newConn() *conn {
	conn := new(conn)
	client, server := net.Pipe()
	conn.client = client
	conn.server = server

	return conn
}

var opts = network.Options{
	ReadSize:     1,
	PollInterval: 50 * time.Millisecond,
	WriteTimeout: time.Second,
}

func recv(t *testing.T, c <-chan interface{}) interface{} {
	select {
	case v, ok := <-c:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timeout: couldn't read value")
	}
	return nil
}

func TestSendConsume(t *testing.T) {
	mc := newConn()
	client := network.Open(mc.client, opts)
	server := network.Open(mc.server, opts)
	defer client.Close()
	defer server.Close()

	vals, err := server.Consume(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		if err := client.Send(protocol.NewCall("play", "42").Value()); err != nil {
			t.Error(err)
		}
	}()

	call, err := protocol.ParseCall(recv(t, vals))
	if err != nil {
		t.Fatal(err)
	}
	if call.Method != "play" || call.Args[0] != "42" {
		t.Fatalf("unexpected call: %v", call)
	}

	if _, err := server.Consume(context.Background()); err == nil {
		t.Fatal("a second consumer should not be allowed")
	}
}

func TestHandshake(t *testing.T) {
	mc := newConn()
	client := network.Open(mc.client, opts)
	server := network.Open(mc.server, opts)
	defer client.Close()
	defer server.Close()

	if client.State() != network.Handshaking {
		t.Fatalf("unexpected state: %v", client.State())
	}

	vals, err := server.Consume(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- client.Handshake("room1")
	}()

	id, err := protocol.ParseIdentity(recv(t, vals))
	if err != nil {
		t.Fatal(err)
	}
	if id != "room1" {
		t.Fatalf("found %v, wanted room1", id)
	}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	if client.State() != network.Established || client.Name() != "room1" {
		t.Fatalf("unexpected client: %v", client)
	}
	if err := client.Handshake("room1"); err == nil {
		t.Fatal("handshake performed twice")
	}

	server.Establish(id)
	if server.State() != network.Established {
		t.Fatalf("unexpected state: %v", server.State())
	}
}

func TestConsume_malformed(t *testing.T) {
	mc := newConn()
	server := network.Open(mc.server, opts)

	vals, err := server.Consume(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	go mc.client.Write([]byte{0xc1})

	select {
	case _, ok := <-vals:
		if ok {
			t.Fatal("unexpected value decoded")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout: connection not closed")
	}

	if !errors.Is(server.Err(), codec.ErrMalformed) {
		t.Fatalf("unexpected error: %v", server.Err())
	}
	if server.State() != network.Closed {
		t.Fatalf("unexpected state: %v", server.State())
	}
	if err := server.Send("x"); !errors.Is(err, network.ErrClosed) {
		t.Fatalf("unexpected send error: %v", err)
	}
}

func TestConsume_cancel(t *testing.T) {
	mc := newConn()
	server := network.Open(mc.server, opts)
	defer mc.client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	vals, err := server.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	cancel()
	select {
	case <-vals:
	case <-time.After(time.Second):
		t.Fatal("consumer ignored cancellation")
	}

	<-server.Done()
	if !errors.Is(server.Err(), context.Canceled) {
		t.Fatalf("unexpected error: %v", server.Err())
	}
}

func TestConsume_eof(t *testing.T) {
	mc := newConn()
	server := network.Open(mc.server, opts)

	vals, err := server.Consume(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	mc.client.Close()
	for range vals {
	}

	if server.State() != network.Closed {
		t.Fatalf("unexpected state: %v", server.State())
	}
}

func TestDialListen(t *testing.T) {
	ctx := context.Background()
	ln, err := network.Listen(ctx, "tcp", "127.0.0.1:0", network.Options{PollInterval: 50 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan *network.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- c
	}()

	d := &network.Dialer{Timeout: time.Second, Options: opts}
	client, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if err := client.Handshake("room1"); err != nil {
		t.Fatal(err)
	}
	if err := client.Send(protocol.NewCall("state").Value()); err != nil {
		t.Fatal(err)
	}

	server := <-accepted
	defer server.Close()
	vals, err := server.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if v := recv(t, vals); v != "room1" {
		t.Fatalf("unexpected identity: %v", v)
	}
	if _, err := protocol.ParseCall(recv(t, vals)); err != nil {
		t.Fatal(err)
	}
}

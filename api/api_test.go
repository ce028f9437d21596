package api_test

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielmorandini/medusa/api"
	"github.com/danielmorandini/medusa/player"
	"github.com/danielmorandini/medusa/proxy"
	"github.com/danielmorandini/medusa/status"
	"github.com/danielmorandini/medusa/transport"
	"github.com/stretchr/testify/require"
)

const timeout = 3 * time.Second

type env struct {
	head   *transport.Transport
	store  *status.Store
	player *player.Player
	client *api.Client
}

func setup(t *testing.T) *env {
	store := status.New()
	hp, err := proxy.New(store.Methods())
	require.NoError(t, err)

	head, err := transport.New(transport.Config{
		Host:         "127.0.0.1",
		PollInterval: 50 * time.Millisecond,
	}, hp)
	require.NoError(t, err)
	require.NoError(t, head.Start())
	t.Cleanup(func() { head.Close() })

	pl := player.New("room1")
	pp, err := proxy.New(pl.Methods())
	require.NoError(t, err)

	snake, err := transport.New(transport.Config{
		Name:           "room1",
		Host:           "127.0.0.1",
		Port:           head.Addr().(*net.TCPAddr).Port,
		ReconnectDelay: 100 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
		DisableRestart: true,
	}, pp)
	require.NoError(t, err)
	pl.Caller = snake
	require.NoError(t, snake.Start())
	t.Cleanup(func() { snake.Close() })

	srv, err := api.New(head, store)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	require.Eventually(t, func() bool {
		return len(head.Peers()) == 1
	}, timeout, 10*time.Millisecond)

	return &env{
		head:   head,
		store:  store,
		player: pl,
		client: api.NewClient(ts.URL),
	}
}

func TestHead(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	peers, err := e.client.Peers(ctx, false)
	require.NoError(t, err)
	require.Equal(t, []string{"room1"}, peers)

	peers, err = e.client.Peers(ctx, true)
	require.NoError(t, err)
	require.Empty(t, peers)

	st, err := e.client.Status(ctx, "room1")
	require.NoError(t, err)
	require.Empty(t, st)

	ok, err := e.client.Action(ctx, "room1", player.ActionPlay, "42")
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		st, err := e.client.Status(ctx, "room1")
		return err == nil && st["media"] == "42" && st["state"] == player.StatePlaying
	}, timeout, 20*time.Millisecond)

	peers, err = e.client.Peers(ctx, true)
	require.NoError(t, err)
	require.Equal(t, []string{"room1"}, peers)

	// JSON numbers reach the player as floats
	ok, err = e.client.Send(ctx, []string{"room1"}, "action", player.ActionVolume, []interface{}{120})
	require.NoError(t, err)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		st, _ := e.client.Status(ctx, "room1")
		v, ok := st["volume"].(float64)
		return ok && v == 120
	}, timeout, 20*time.Millisecond)
}

func TestHead_failures(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	ok, err := e.client.Action(ctx, "room2", player.ActionStop)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = e.client.Send(ctx, []string{"room1", "room2"}, "action", player.ActionState, []interface{}{})
	require.NoError(t, err)
	require.False(t, ok)

	_, err = e.client.Send(ctx, nil, "action")
	require.Error(t, err)

	_, err = e.client.Action(ctx, "room1", "")
	require.Error(t, err)
}

func TestMonitor(t *testing.T) {
	e := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan api.Message, 16)
	errc := make(chan error, 1)
	go func() {
		errc <- e.client.Monitor(ctx, func(m api.Message) {
			msgs <- m
		})
	}()

	next := func() api.Message {
		select {
		case m := <-msgs:
			return m
		case err := <-errc:
			t.Fatalf("monitor exited: %v", err)
		case <-time.After(timeout):
			t.Fatal("timeout: no monitor message")
		}
		return api.Message{}
	}

	m := next()
	require.Equal(t, api.EventConnected, m.Event)
	require.Equal(t, "room1", m.Peer)

	e.store.Set("room1", map[string]interface{}{"state": "paused"})
	for {
		m = next()
		if m.Event == api.EventStatus {
			break
		}
	}
	require.Equal(t, "room1", m.Peer)
	require.Equal(t, "paused", m.Status["state"])

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(timeout):
		t.Fatal("monitor did not return")
	}
}

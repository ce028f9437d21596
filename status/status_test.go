package status_test

import (
	"testing"
	"time"

	"github.com/danielmorandini/medusa/protocol"
	"github.com/danielmorandini/medusa/proxy"
	"github.com/danielmorandini/medusa/status"
	"github.com/stretchr/testify/require"
)

func TestUpdate(t *testing.T) {
	s := status.New()
	updates := make(chan status.Update, 4)
	i, err := s.Notify(func(u status.Update) {
		updates <- u
	})
	require.NoError(t, err)
	defer s.StopNotifying(i)

	p, err := proxy.New(s.Methods())
	require.NoError(t, err)
	d := proxy.NewDispatcher(p)

	call := protocol.NewCall(protocol.MethodUpdate, "room1", map[interface{}]interface{}{
		"state": "playing",
		"media": "42",
	})
	require.NoError(t, d.Dispatch("room1", call.Value()))

	m, ok := s.Get("room1")
	require.True(t, ok)
	require.Equal(t, "playing", m["state"])
	require.True(t, s.Active("room1"))
	require.Equal(t, []string{"room1"}, s.Names())

	select {
	case u := <-updates:
		require.Equal(t, "room1", u.Peer)
		require.Equal(t, "42", u.Status["media"])
	case <-time.After(time.Second):
		t.Fatal("timeout: update not published")
	}

	// copies are returned
	m["state"] = "stopped"
	m, _ = s.Get("room1")
	require.Equal(t, "playing", m["state"])
}

func TestUpdate_invalid(t *testing.T) {
	s := status.New()
	p, err := proxy.New(s.Methods())
	require.NoError(t, err)
	d := proxy.NewDispatcher(p)

	require.Error(t, d.Dispatch("x", protocol.NewCall(protocol.MethodUpdate).Value()))
	require.Error(t, d.Dispatch("x", protocol.NewCall(protocol.MethodUpdate, "", map[string]interface{}{}).Value()))
	require.Error(t, d.Dispatch("x", protocol.NewCall(protocol.MethodUpdate, "room1", "playing").Value()))
	require.Empty(t, s.Names())
	require.False(t, s.Active("room1"))
}

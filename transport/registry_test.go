package transport_test

import (
	"net"
	"testing"

	"github.com/danielmorandini/medusa/network"
	"github.com/danielmorandini/medusa/transport"
)

func pipeConn(t *testing.T) *network.Conn {
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	return network.Open(c1, network.Options{})
}

func TestRegistry(t *testing.T) {
	r := transport.NewRegistry()
	a1, a2, b := pipeConn(t), pipeConn(t), pipeConn(t)

	if old := r.Add("A", a1); old != nil {
		t.Fatalf("unexpected replaced conn: %v", old)
	}
	r.Add("B", b)
	if old := r.Add("A", a2); old != a1 {
		t.Fatalf("found %v, wanted first conn to be replaced", old)
	}
	if r.Len() != 2 {
		t.Fatalf("found %d entries, wanted 2", r.Len())
	}

	// the replaced connection must not remove its successor
	if r.Remove("A", a1) {
		t.Fatal("stale conn removed the newer entry")
	}
	if c, ok := r.Get("A"); !ok || c != a2 {
		t.Fatalf("found %v, wanted newer conn", c)
	}

	if !r.Remove("A", a2) {
		t.Fatal("unable to remove A")
	}
	if _, ok := r.Get("A"); ok {
		t.Fatal("A still registered")
	}

	names := r.Names()
	if len(names) != 1 || names[0] != "B" {
		t.Fatalf("found %v, wanted [B]", names)
	}
}

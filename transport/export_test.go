package transport

import "github.com/danielmorandini/medusa/network"

// PeerConn returns the connection registered with name on a server.
func (t *Transport) PeerConn(name string) (*network.Conn, bool) {
	if t.registry == nil {
		return nil, false
	}
	return t.registry.Get(name)
}

// ServerConn returns the connection a client is currently using.
func (t *Transport) ServerConn() *network.Conn {
	c, ok := t.current().(*client)
	if !ok {
		return nil
	}
	return c.current()
}

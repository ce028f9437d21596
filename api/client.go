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

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/gorilla/websocket"
)

// Client talks to the api of a head.
type Client struct {
	// URL is the base address of the head, like http://localhost:8080.
	URL  string
	HTTP *http.Client
}

// NewClient returns a client for the head at url.
func NewClient(url string) *Client {
	return &Client{
		URL:  strings.TrimSuffix(url, "/"),
		HTTP: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	body, err := json2.EncodeClientRequest(ServiceName+"."+method, args)
	if err != nil {
		return fmt.Errorf("api: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL+PathRPC, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("api: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("api: failed to issue request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("api: received status code %d", resp.StatusCode)
	}
	if err := json2.DecodeClientResponse(resp.Body, reply); err != nil {
		return fmt.Errorf("api: %v: %w", method, err)
	}
	return nil
}

// Send sends a raw remote call to the named players.
func (c *Client) Send(ctx context.Context, names []string, method string, args ...interface{}) (bool, error) {
	var reply Reply
	err := c.call(ctx, "Send", &SendArgs{Names: names, Method: method, Args: args}, &reply)
	return reply.OK, err
}

// Action asks the player name to perform action.
func (c *Client) Action(ctx context.Context, name, action string, args ...interface{}) (bool, error) {
	var reply Reply
	err := c.call(ctx, "Action", &ActionArgs{Name: name, Action: action, Args: args}, &reply)
	return reply.OK, err
}

// Peers lists the connected players, only the ones with some media loaded
// if active is set.
func (c *Client) Peers(ctx context.Context, active bool) ([]string, error) {
	var reply PeersReply
	err := c.call(ctx, "Peers", &PeersArgs{Active: active}, &reply)
	return reply.Peers, err
}

// Status returns the last status pushed by the player name.
func (c *Client) Status(ctx context.Context, name string) (map[string]interface{}, error) {
	var reply StatusReply
	err := c.call(ctx, "Status", &StatusArgs{Name: name}, &reply)
	return reply.Status, err
}

// Monitor attaches to the head's monitor stream, calling f with each
// message received until ctx is done or the stream breaks.
func (c *Client) Monitor(ctx context.Context, f func(Message)) error {
	url := c.URL + PathMonitor
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("api: monitor: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("api: monitor: %w", err)
		}
		f(m)
	}
}

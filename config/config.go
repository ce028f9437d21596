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

// Package config loads medusa configuration files, written in the
// properties format:
//
//	log.level = info
//	transport.host = 0.0.0.0
//	transport.port = 9000
//	transport.name = room1
//	api.port = 8080
//
// Missing keys take their default value.
package config

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/magiconair/properties"

	"github.com/danielmorandini/medusa/codec"
	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/protocol"
	"github.com/danielmorandini/medusa/transport"
)

// Configuration keys.
const (
	KeyLogLevel       = "log.level"
	KeyHost           = "transport.host"
	KeyPort           = "transport.port"
	KeyName           = "transport.name"
	KeyCodec          = "transport.codec"
	KeyReconnect      = "transport.reconnect"
	KeyPoll           = "transport.poll"
	KeyDialTimeout    = "transport.dial.timeout"
	KeyWriteTimeout   = "transport.write.timeout"
	KeyReadSize       = "transport.read.size"
	KeySOCKS5         = "transport.socks5"
	KeyDisableRestart = "transport.restart.disabled"
	KeyAPIHost        = "api.host"
	KeyAPIPort        = "api.port"
)

// DefaultAPIPort is the port of the head's http api.
const DefaultAPIPort = 8080

// Config holds the settings of a medusa process.
type Config struct {
	LogLevel  log.Level
	Transport transport.Config
	APIHost   string
	APIPort   int
}

// APIAddr returns the address the api listens on.
func (c *Config) APIAddr() string {
	return net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}

// Default returns the default configuration.
func Default() *Config {
	c, _ := Parse(properties.NewProperties())
	return c
}

// Load reads the configuration file at path. An empty path returns the
// default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("config: %v", err)
	}
	return Parse(p)
}

// LoadString parses a configuration from s.
func LoadString(s string) (*Config, error) {
	p, err := properties.LoadString(s)
	if err != nil {
		return nil, fmt.Errorf("config: %v", err)
	}
	return Parse(p)
}

// Parse builds a Config out of p, validating it.
func Parse(p *properties.Properties) (*Config, error) {
	level, err := log.ParseLevel(p.GetString(KeyLogLevel, log.InfoLevel.String()))
	if err != nil {
		return nil, fmt.Errorf("config: %v: %v", KeyLogLevel, err)
	}

	codecName := p.GetString(KeyCodec, codec.DefaultName)
	if _, err := codec.Lookup(codecName); err != nil {
		return nil, fmt.Errorf("config: %v: %v", KeyCodec, err)
	}

	c := &Config{
		LogLevel: level,
		Transport: transport.Config{
			Name:           p.GetString(KeyName, ""),
			Host:           p.GetString(KeyHost, protocol.DefaultHost),
			Port:           p.GetInt(KeyPort, protocol.DefaultPort),
			Codec:          codecName,
			ReconnectDelay: p.GetParsedDuration(KeyReconnect, protocol.DefaultReconnectDelay),
			PollInterval:   p.GetParsedDuration(KeyPoll, protocol.DefaultPollInterval),
			DialTimeout:    p.GetParsedDuration(KeyDialTimeout, protocol.DefaultDialTimeout),
			WriteTimeout:   p.GetParsedDuration(KeyWriteTimeout, protocol.DefaultWriteTimeout),
			ReadSize:       p.GetInt(KeyReadSize, 0),
			SOCKS5:         p.GetString(KeySOCKS5, ""),
			DisableRestart: p.GetBool(KeyDisableRestart, false),
		},
		APIHost: p.GetString(KeyAPIHost, protocol.DefaultHost),
		APIPort: p.GetInt(KeyAPIPort, DefaultAPIPort),
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	ports := map[string]int{
		KeyPort:    c.Transport.Port,
		KeyAPIPort: c.APIPort,
	}
	for key, port := range ports {
		if port < 0 || port > 0xffff {
			return fmt.Errorf("config: %v: invalid port %d", key, port)
		}
	}

	durations := map[string]time.Duration{
		KeyReconnect:    c.Transport.ReconnectDelay,
		KeyPoll:         c.Transport.PollInterval,
		KeyDialTimeout:  c.Transport.DialTimeout,
		KeyWriteTimeout: c.Transport.WriteTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("config: %v: duration must be positive, found %v", key, d)
		}
	}

	if c.Transport.ReadSize < 0 {
		return fmt.Errorf("config: %v: negative read size", KeyReadSize)
	}
	return nil
}

// Watch reloads the configuration file at path each time it changes,
// passing the result to f, until ctx is done. Invalid files are logged and
// skipped.
func Watch(ctx context.Context, path string, f func(*Config)) error {
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: %v", err)
	}
	// Editors often replace the file instead of writing it: watch the
	// directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("config: %v", err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				c, err := Load(path)
				if err != nil {
					log.Error.Printf("config: reload: %v", err)
					continue
				}
				log.Debug.Printf("config: reloaded %v", path)
				f(c)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error.Printf("config: watch: %v", err)
			}
		}
	}()

	return nil
}

// WatchLogLevel applies the log level found in the configuration file at
// path each time it changes.
func WatchLogLevel(ctx context.Context, path string) error {
	return Watch(ctx, path, func(c *Config) {
		if c.LogLevel != log.CurrentLevel() {
			log.Info.Printf("config: log level set to %v", c.LogLevel)
			log.SetLevel(c.LogLevel)
		}
	})
}

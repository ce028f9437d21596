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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielmorandini/medusa/api"
	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/proxy"
	"github.com/danielmorandini/medusa/status"
	"github.com/danielmorandini/medusa/transport"
)

var headCmd = &cobra.Command{
	Use:   "head",
	Short: "head accepts players and serves the control api",
	Long: `head accepts player connections on the transport port and serves the JSON-RPC
control api, together with the /monitor websocket stream, on the api port.

	Example:
	bin/medusa head --port 9000 --api-port 8080
	2018/05/21 15:59:00.862049 INFO  transport: listening on 0.0.0.0:9000
	2018/05/21 15:59:00.862050 INFO  api: listening on 0.0.0.0:8080
	`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if c.Transport.IsClient() {
			return fmt.Errorf("head: transport.name must be empty, found %q", c.Transport.Name)
		}

		store := status.New()
		p, err := proxy.New(store.Methods())
		if err != nil {
			return err
		}

		tr, err := transport.New(c.Transport, p)
		if err != nil {
			return err
		}
		if err := tr.Start(); err != nil {
			return err
		}
		defer tr.Close()

		tr.Notify(func(e transport.Event) {
			log.Info.Printf("head: %v %v (%v)", e.Peer, e.Kind, e.Addr)
		})

		srv, err := api.New(tr, store)
		if err != nil {
			return err
		}

		ctx, cancel := interrupted()
		defer cancel()
		watchConfig(ctx)

		return srv.ListenAndServe(ctx, c.APIAddr())
	},
}

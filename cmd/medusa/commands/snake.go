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
	"errors"

	"github.com/spf13/cobra"

	"github.com/danielmorandini/medusa/log"
	"github.com/danielmorandini/medusa/player"
	"github.com/danielmorandini/medusa/protocol"
	"github.com/danielmorandini/medusa/proxy"
	"github.com/danielmorandini/medusa/transport"
)

var snakeCmd = &cobra.Command{
	Use:     "snake",
	Aliases: []string{"player"},
	Short:   "snake runs a player, connecting it to the head",
	Long: `snake runs a player identified by --name, connecting it to the head found at
--host:--port. The connection is re-established each time it goes down.

	Example:
	bin/medusa snake --name room1 --host head.local
	`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !c.Transport.IsClient() {
			return errors.New("snake: a name is required (--name or transport.name)")
		}
		if !cmd.Flags().Changed("host") && c.Transport.Host == protocol.DefaultHost {
			c.Transport.Host = "localhost"
		}

		pl := player.New(c.Transport.Name)
		p, err := proxy.New(pl.Methods())
		if err != nil {
			return err
		}

		tr, err := transport.New(c.Transport, p)
		if err != nil {
			return err
		}
		pl.Caller = tr

		// let the head know about us as soon as we're connected
		tr.Notify(func(e transport.Event) {
			if e.Kind == transport.EventConnected {
				pl.PushStatus()
			}
		})

		if err := tr.Start(); err != nil {
			return err
		}
		defer tr.Close()

		ctx, cancel := interrupted()
		defer cancel()
		watchConfig(ctx)

		log.Info.Printf("snake: %v running, actions: %v", pl.Name(), pl.Actions())
		<-ctx.Done()
		return nil
	},
}

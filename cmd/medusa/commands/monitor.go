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
	"github.com/spf13/cobra"

	"github.com/danielmorandini/medusa/api"
	"github.com/danielmorandini/medusa/log"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "monitors the players connected to a head",
	Long: `monitor attaches to the /monitor stream of the head's api, and logs each player
connection, disconnection and status update.

	Example:
	bin/medusa monitor --api http://head.local:8080
	`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		ctx, cancel := interrupted()
		defer cancel()

		c := api.NewClient(apiURL)
		return c.Monitor(ctx, func(m api.Message) {
			switch m.Event {
			case api.EventStatus:
				log.Printf("%v: %v %v (%v)", m.Peer, m.Status["state"], m.Status["media"], m.Status["elapsed"])
			default:
				log.Printf("%v: %v %v", m.Peer, m.Event, m.Addr)
			}
		})
	},
}

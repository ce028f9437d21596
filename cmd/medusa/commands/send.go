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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielmorandini/medusa/api"
	"github.com/danielmorandini/medusa/log"
)

var (
	jsonArgs   bool
	activeOnly bool
)

const requestTimeout = 10 * time.Second

// parseArgs converts command line arguments into call arguments. They are
// strings unless jsonArgs is set.
func parseArgs(args []string) ([]interface{}, error) {
	out := make([]interface{}, len(args))
	for i, a := range args {
		if !jsonArgs {
			out[i] = a
			continue
		}
		if err := json.Unmarshal([]byte(a), &out[i]); err != nil {
			return nil, fmt.Errorf("argument %d: %v", i, err)
		}
	}
	return out, nil
}

func client() (*api.Client, context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	return api.NewClient(apiURL), ctx, cancel
}

var sendCmd = &cobra.Command{
	Use:   "send name[,name...] method [args...]",
	Short: "sends a raw remote call to one or more players",
	Long: `send asks the head to send a remote call to the players listed, in order. The
head stops at the first player it cannot reach.

	Example:
	bin/medusa send room1 action play '["42"]' --json
	`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		callArgs, err := parseArgs(args[2:])
		if err != nil {
			return err
		}

		c, ctx, cancel := client()
		defer cancel()

		ok, err := c.Send(ctx, splitNames(args[0]), args[1], callArgs...)
		if err != nil {
			return err
		}
		return report(ok)
	},
}

var actionCmd = &cobra.Command{
	Use:   "action name action [args...]",
	Short: "asks a player to perform an action",
	Long: `action asks the player name to perform an action: play, pause, stop, queue,
empty_queue, state, volume, mute or jump_to.

	Example:
	bin/medusa action room1 play 42
	bin/medusa action room1 volume 120 --json
	`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		callArgs, err := parseArgs(args[2:])
		if err != nil {
			return err
		}

		c, ctx, cancel := client()
		defer cancel()

		ok, err := c.Action(ctx, args[0], args[1], callArgs...)
		if err != nil {
			return err
		}
		return report(ok)
	},
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "lists the players connected to the head",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := client()
		defer cancel()

		peers, err := c.Peers(ctx, activeOnly)
		if err != nil {
			return err
		}
		for _, p := range peers {
			fmt.Println(p)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status name",
	Short: "prints the last status pushed by a player",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ctx, cancel := client()
		defer cancel()

		st, err := c.Status(ctx, args[0])
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	},
}

func report(ok bool) error {
	if !ok {
		return errors.New("delivery failed")
	}
	fmt.Println("ok")
	return nil
}

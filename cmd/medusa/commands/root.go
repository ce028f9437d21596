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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danielmorandini/medusa/config"
	"github.com/danielmorandini/medusa/log"
)

var (
	Version   string
	BuildTime string
)

var (
	configPath string
	verbose    bool

	host      string
	port      int
	name      string
	codecName string
	apiHost   string
	apiPort   int
	apiURL    string
)

var rootCmd = &cobra.Command{
	Use:   "medusa",
	Short: "medusa drives a set of media players from a central head",
	Long: `medusa runs a head process that remotely controls one or more media players
(snakes) over long lived TCP connections, while the players push their status
back to the head.`,
	SilenceUsage: true,
}

func Execute() {
	// parse flags
	for _, c := range []*cobra.Command{headCmd, snakeCmd} {
		c.Flags().StringVar(&host, "host", "", "transport host (bind address for the head, head address for snakes)")
		c.Flags().IntVar(&port, "port", 0, "transport port")
		c.Flags().StringVar(&codecName, "codec", "", "wire codec (msgpack|protobuf)")
	}
	snakeCmd.Flags().StringVarP(&name, "name", "n", "", "identity of the player")
	headCmd.Flags().StringVar(&apiHost, "api-host", "", "api listening host")
	headCmd.Flags().IntVar(&apiPort, "api-port", 0, "api listening port")
	for _, c := range []*cobra.Command{sendCmd, actionCmd, peersCmd, statusCmd, monitorCmd} {
		c.Flags().StringVar(&apiURL, "api", "http://localhost:8080", "address of the head's api")
	}
	sendCmd.Flags().BoolVar(&jsonArgs, "json", false, "parse arguments as JSON values")
	actionCmd.Flags().BoolVar(&jsonArgs, "json", false, "parse arguments as JSON values")
	peersCmd.Flags().BoolVar(&activeOnly, "active", false, "list only the players with some media loaded")
	versionCmd.Flags().StringVar(&checkVersion, "check", "", "tell whether a peer speaking this protocol version is supported")

	// add commands
	rootCmd.AddCommand(versionCmd, headCmd, snakeCmd, sendCmd, actionCmd, peersCmd, statusCmd, monitorCmd)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// execute
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags
// explicitly set on cmd on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		c.Transport.Host = host
	}
	if flags.Changed("port") {
		c.Transport.Port = port
	}
	if flags.Changed("name") {
		c.Transport.Name = name
	}
	if flags.Changed("codec") {
		c.Transport.Codec = codecName
	}
	if flags.Changed("api-host") {
		c.APIHost = apiHost
	}
	if flags.Changed("api-port") {
		c.APIPort = apiPort
	}

	log.SetLevel(c.LogLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	return c, nil
}

// watchConfig keeps the log level in sync with the configuration file.
func watchConfig(ctx context.Context) {
	if configPath == "" || verbose {
		return
	}
	if err := config.WatchLogLevel(ctx, configPath); err != nil {
		log.Warn.Printf("medusa: %v", err)
	}
}

// interrupted returns a context cancelled on SIGINT or SIGTERM.
func interrupted() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

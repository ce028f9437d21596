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

	"github.com/danielmorandini/medusa/codec"
	"github.com/danielmorandini/medusa/protocol"
)

var checkVersion string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "prints version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkVersion != "" {
			if !protocol.IsVersionSupported(checkVersion) {
				return fmt.Errorf("protocol version %v is not supported (speaking %v)", checkVersion, protocol.Version)
			}
			fmt.Printf("protocol version %v is supported\n", checkVersion)
			return nil
		}

		fmt.Printf("Version: %v\nBuildTime: %v\nProtocol: %v\nCodecs: %v\n", Version, BuildTime, protocol.Version, codec.Names())
		return nil
	},
}

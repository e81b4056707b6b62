// Command phnxcli is a small command-line demonstration of the phoenixclient
// library against a real Phoenix server: connect, join a channel, call, and
// cast, driven from a TOML connection profile with a .env secret overlay.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var globalProfilePath string

var rootCmd = &cobra.Command{
	Use:   "phnxcli",
	Short: "Drive a Phoenix Channels server from the command line",
	Long: `phnxcli is a thin CLI wrapper over the phoenixclient library: connect
to a Phoenix server, join a channel, and issue call/cast requests, all
configured from a TOML connection profile.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalProfilePath, "profile", "", "path to TOML connection profile (required: server.url is read from it)")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(castCmd)
}

func main() {
	log.SetFlags(0)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

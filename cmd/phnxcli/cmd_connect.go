package main

import (
	"log"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the server and print status transitions until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		sock, _, err := connectSocket()
		if err != nil {
			return err
		}
		defer sock.Shutdown()

		for ev := range sock.Statuses() {
			if ev.Err != nil {
				log.Printf("phnxcli: status=%s err=%v", ev.Status, ev.Err)
				continue
			}
			log.Printf("phnxcli: status=%s", ev.Status)
		}
		return nil
	},
}

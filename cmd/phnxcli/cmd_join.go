package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var joinTopic string
var joinPayloadRaw string

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a channel and print the server's ok-payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		if joinTopic == "" {
			return fmt.Errorf("phnxcli: --topic is required")
		}
		sock, cfg, err := connectSocket()
		if err != nil {
			return err
		}
		defer sock.Shutdown()

		payload, err := parseJSONPayloadFlag(joinPayloadRaw)
		if err != nil {
			return err
		}

		ch := sock.Channel(joinTopic, payload)
		resp, err := ch.Join(cfg.Timeout.join())
		if err != nil {
			return fmt.Errorf("phnxcli: join %s: %w", joinTopic, err)
		}
		fmt.Println(string(resp.JSON))
		return nil
	},
}

func init() {
	joinCmd.Flags().StringVar(&joinTopic, "topic", "", "channel topic to join, e.g. channel:lobby")
	joinCmd.Flags().StringVar(&joinPayloadRaw, "payload", "{}", "JSON join payload")
}

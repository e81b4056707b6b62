package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var callTopic string
var callJoinPayloadRaw string
var callEvent string
var callPayloadRaw string

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Join a channel, send a call, and print the reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		if callTopic == "" || callEvent == "" {
			return fmt.Errorf("phnxcli: --topic and --event are required")
		}
		sock, cfg, err := connectSocket()
		if err != nil {
			return err
		}
		defer sock.Shutdown()

		joinPayload, err := parseJSONPayloadFlag(callJoinPayloadRaw)
		if err != nil {
			return err
		}
		ch := sock.Channel(callTopic, joinPayload)
		if _, err := ch.Join(cfg.Timeout.join()); err != nil {
			return fmt.Errorf("phnxcli: join %s: %w", callTopic, err)
		}

		payload, err := parseJSONPayloadFlag(callPayloadRaw)
		if err != nil {
			return err
		}
		resp, err := ch.Call(callEvent, payload, cfg.Timeout.call())
		if err != nil {
			return fmt.Errorf("phnxcli: call %s: %w", callEvent, err)
		}
		fmt.Println(string(resp.JSON))
		return nil
	},
}

func init() {
	callCmd.Flags().StringVar(&callTopic, "topic", "", "channel topic to join first")
	callCmd.Flags().StringVar(&callJoinPayloadRaw, "join-payload", "{}", "JSON join payload")
	callCmd.Flags().StringVar(&callEvent, "event", "", "event name to call")
	callCmd.Flags().StringVar(&callPayloadRaw, "payload", "{}", "JSON call payload")
}

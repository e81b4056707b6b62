package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var castTopic string
var castJoinPayloadRaw string
var castEvent string
var castPayloadRaw string

var castCmd = &cobra.Command{
	Use:   "cast",
	Short: "Join a channel and send a fire-and-forget cast",
	RunE: func(cmd *cobra.Command, args []string) error {
		if castTopic == "" || castEvent == "" {
			return fmt.Errorf("phnxcli: --topic and --event are required")
		}
		sock, cfg, err := connectSocket()
		if err != nil {
			return err
		}
		defer sock.Shutdown()

		joinPayload, err := parseJSONPayloadFlag(castJoinPayloadRaw)
		if err != nil {
			return err
		}
		ch := sock.Channel(castTopic, joinPayload)
		if _, err := ch.Join(cfg.Timeout.join()); err != nil {
			return fmt.Errorf("phnxcli: join %s: %w", castTopic, err)
		}

		payload, err := parseJSONPayloadFlag(castPayloadRaw)
		if err != nil {
			return err
		}
		if err := ch.Cast(castEvent, payload); err != nil {
			return fmt.Errorf("phnxcli: cast %s: %w", castEvent, err)
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	castCmd.Flags().StringVar(&castTopic, "topic", "", "channel topic to join first")
	castCmd.Flags().StringVar(&castJoinPayloadRaw, "join-payload", "{}", "JSON join payload")
	castCmd.Flags().StringVar(&castEvent, "event", "", "event name to cast")
	castCmd.Flags().StringVar(&castPayloadRaw, "payload", "{}", "JSON cast payload")
}

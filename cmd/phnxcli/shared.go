package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/whisper/phoenixclient"
)

// connectSocket loads the profile at globalProfilePath (if any), resolves
// the server URL with the shared secret appended, and connects a Socket
// within the profile's connect timeout.
func connectSocket() (*phoenixclient.Socket, profileConfig, error) {
	cfg, err := loadProfile(globalProfilePath)
	if err != nil {
		return nil, profileConfig{}, err
	}
	if cfg.Server.URL == "" {
		return nil, profileConfig{}, fmt.Errorf("phnxcli: profile has no server.url set")
	}

	secret := loadSharedSecret()
	fullURL, err := resolveURL(cfg, secret)
	if err != nil {
		return nil, profileConfig{}, err
	}

	sock := phoenixclient.Spawn(fullURL)
	log.Printf("phnxcli: connecting to %s", cfg.Server.URL)
	if err := sock.Connect(cfg.Timeout.connect()); err != nil {
		return nil, profileConfig{}, fmt.Errorf("phnxcli: connect: %w", err)
	}
	log.Printf("phnxcli: connected")
	return sock, cfg, nil
}

// parseJSONPayloadFlag validates a --payload flag value as JSON before
// wrapping it in a Payload, so a malformed flag fails fast instead of
// round-tripping to the server first.
func parseJSONPayloadFlag(raw string) (phoenixclient.Payload, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return phoenixclient.Payload{}, fmt.Errorf("phnxcli: --payload is not valid JSON: %w", err)
	}
	return phoenixclient.JSONPayload(json.RawMessage(raw)), nil
}

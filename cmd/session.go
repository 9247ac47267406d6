/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/hostclient"
)

const requestTimeout = 5 * time.Second

// openSession starts an in-process driver and opens portName with cfg.
// The returned stop function closes the port and shuts the driver down.
func openSession(ctx context.Context, portName string, cfg uart.Config) (*hostclient.Client, func(), error) {
	backend, err := uart.NewBackend()
	if err != nil {
		return nil, nil, err
	}

	client, _ := hostclient.Spawn(ctx, backend, logger)
	stop := func() {
		if err := client.Stop(); err != nil {
			logger.Warn().Err(err).Msg("driver stopped with error")
		}
		backend.Release()
	}

	openCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if err := client.Open(openCtx, portName, cfg); err != nil {
		stop()
		return nil, nil, fmt.Errorf("opening %s: %w", portName, err)
	}
	return client, stop, nil
}

// withPort runs fn against portName opened in passive mode.
func withPort(ctx context.Context, portName string, fn func(ctx context.Context, c *hostclient.Client) error) error {
	cfg, err := portConfig()
	if err != nil {
		return err
	}
	client, stop, err := openSession(ctx, portName, cfg)
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return fn(ctx, client)
}

// portName strips the /dev/ prefix the driver adds itself.
func portName(arg string) string {
	return strings.TrimPrefix(arg, "/dev/")
}

func parseSignalState(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "high", "on", "true", "1":
		return true, nil
	case "low", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid state: %s (valid: high, low, on, off, true, false, 1, 0)", state)
	}
}

func formatSignalState(state bool) string {
	if state {
		return "HIGH"
	}
	return "LOW"
}

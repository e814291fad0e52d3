package cmd

import (
	"time"

	"github.com/geoffjay/taskfabricd/internal/transport"
)

// dialDispatcher opens a request/reply socket against the resolved
// Dispatcher address, configured with taskctl's default retry policy:
// five resends at a one-second timeout each.
func dialDispatcher() (*transport.Socket, error) {
	sock, err := transport.Dial(dispatcherAddress())
	if err != nil {
		return nil, err
	}

	timeout := cfg.Dispatcher.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	retries := cfg.Dispatcher.Retries
	if retries <= 0 {
		retries = 5
	}

	sock.SetTimeout(timeout)
	sock.SetRetries(retries)
	return sock, nil
}

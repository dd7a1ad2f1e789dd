package main

import (
	"fmt"

	"triage/pkg/server"
)

// newClient resolves the socket path (flag override first, then env/default)
// and returns a client for the running engine.
func newClient(socketFlag string) (*server.Client, error) {
	socketPath := socketFlag
	if socketPath == "" {
		paths, err := ResolvePaths()
		if err != nil {
			return nil, fmt.Errorf("resolve paths: %w", err)
		}
		socketPath = paths.SocketPath
	}
	return &server.Client{SocketPath: socketPath}, nil
}

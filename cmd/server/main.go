// Command server runs the maze game server: it loads configuration, wires
// every component through internal/supervisor, and blocks until SIGINT or
// SIGTERM triggers the documented shutdown sequence.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mazeserver/internal/config"
	"mazeserver/internal/supervisor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "mazeserver: %v\n", err)
		return 1
	}

	srv, err := supervisor.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mazeserver: %v\n", err)
		return 1
	}

	shutdown := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(shutdown)
	}()

	if err := srv.Run(shutdown); err != nil {
		fmt.Fprintf(os.Stderr, "mazeserver: %v\n", err)
		return 1
	}
	return 0
}

// BomberStudent lobby client - Main Entry Point
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bomberstudent/internal/client"
	"bomberstudent/pkg/logger"
)

var (
	version    = "1.0.0"
	serverAddr = flag.String("server", "localhost:42069", "Server address (host:port)")
	useWS      = flag.Bool("ws", false, "Connect through the WebSocket gateway")
	execCmd    = flag.String("exec", "", "Send one command, print the response and exit")
	idle       = flag.Duration("idle", client.DefaultIdleWindow, "Silence that ends a response")
	logLevel   = flag.String("log-level", "WARN", "Log level (DEBUG, INFO, WARN, ERROR)")
	logFile    = flag.String("log-file", "", "Log file path (optional)")
	ver        = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *ver {
		fmt.Printf("BomberStudent lobby client v%s\n", version)
		return
	}

	if err := initLogging(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Client.Close()

	lobbyClient := client.NewClient(*serverAddr, client.Options{
		WebSocket:       *useWS,
		ResponseTimeout: 5 * time.Second,
		IdleWindow:      *idle,
	})

	if *execCmd != "" {
		if _, err := lobbyClient.Exec(*execCmd); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	setupGracefulShutdown(lobbyClient)

	if err := lobbyClient.Start(); err != nil {
		logger.Client.Error("Client failed: %v", err)
		os.Exit(1)
	}
}

// initLogging sets up the logging system
func initLogging() error {
	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	logger.SetGlobalLogLevel(level)

	if *logFile != "" {
		if err := logger.Client.SetFile(*logFile); err != nil {
			return fmt.Errorf("failed to set log file: %w", err)
		}
	}
	return nil
}

// setupGracefulShutdown handles graceful shutdown on interrupt signals
func setupGracefulShutdown(lobbyClient *client.Client) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Client.Info("Received shutdown signal, closing client...")
		lobbyClient.Close()
		os.Exit(0)
	}()
}

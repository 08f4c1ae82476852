// BomberStudent lobby server - Main Entry Point
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"bomberstudent/internal/cluster"
	"bomberstudent/internal/config"
	"bomberstudent/internal/events"
	"bomberstudent/internal/lobby"
	"bomberstudent/internal/protocol"
	"bomberstudent/internal/server"
	"bomberstudent/internal/shutdown"
	"bomberstudent/pkg/logger"
)

var (
	version     = "1.0.0"
	buildTime   = "dev"
	configPath  = flag.String("config", "", "YAML configuration file (optional)")
	port        = flag.Int("port", config.DefaultPort, "Server port")
	host        = flag.String("host", config.DefaultHost, "Server host")
	dataDir     = flag.String("data-dir", config.DefaultDataDir, "Data directory path")
	maxSessions = flag.Int("max-sessions", config.DefaultMaxSessions, "Maximum concurrent client sessions")
	wsAddr      = flag.String("ws-addr", "", "WebSocket gateway address (optional)")
	healthAddr  = flag.String("health-addr", "", "Health endpoint address (optional)")
	logLevel    = flag.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	logFile     = flag.String("log-file", "", "Log file path (optional)")
	help        = flag.Bool("help", false, "Show help information")
	ver         = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *help {
		showHelp()
		return
	}
	if *ver {
		showVersion()
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := initLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Server.Close()

	printBanner(cfg)
	logger.Server.Info("Starting BomberStudent lobby server v%s", version)

	coordinator := shutdown.New(cfg.Grace(), logger.Server)

	var publisher *events.Publisher
	if cfg.Nats.URL != "" {
		publisher, err = events.Connect(cfg.Nats.URL, cfg.Nats.Subject, logger.Server)
		if err != nil {
			logger.Server.Warn("Game events disabled: %v", err)
		} else {
			coordinator.Track("nats publisher", publisher.Close)
		}
	}

	persister := lobby.NewFilePersister(cfg.Data.Dir, cfg.Data.MapsFile, cfg.Data.GamesFile)
	store, err := lobby.NewStore(persister, lobby.WithObserver(publisher.GameCreated))
	if err != nil {
		logger.Server.Fatal("Failed to load lobby data: %v", err)
	}
	logger.Server.Info("Lobby data loaded from %s", cfg.Data.Dir)

	gameServer := server.NewServer(server.Options{
		Address:        cfg.Address(),
		MaxSessions:    cfg.Server.MaxSessions,
		MaxMessageSize: cfg.Server.MaxMessageSize,
		IdleTimeout:    cfg.IdleTimeout(),
		WriteTimeout:   cfg.WriteTimeout(),
	}, protocol.NewDispatcher(store, logger.Server), coordinator, logger.Server)

	if err := gameServer.Listen(); err != nil {
		logger.Server.Fatal("Server failed to start: %v", err)
	}

	if cfg.Server.WebSocketAddr != "" {
		if _, err := gameServer.ServeWebSocket(cfg.Server.WebSocketAddr); err != nil {
			logger.Server.Fatal("%v", err)
		}
	}

	if cfg.Server.HealthAddr != "" {
		startHealth(cfg, store, coordinator)
	}

	setupGracefulShutdown(coordinator)

	if err := gameServer.Serve(); err != nil {
		logger.Server.Fatal("Server stopped unexpectedly: %v", err)
	}

	<-coordinator.Stopped()
	logger.Server.Info("Server stopped")
}

// loadConfig reads the optional YAML file, then applies the flags given on the command line
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "host":
			cfg.Server.Host = *host
		case "data-dir":
			cfg.Data.Dir = *dataDir
		case "max-sessions":
			cfg.Server.MaxSessions = *maxSessions
		case "ws-addr":
			cfg.Server.WebSocketAddr = *wsAddr
		case "health-addr":
			cfg.Server.HealthAddr = *healthAddr
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-file":
			cfg.Log.File = *logFile
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging sets up the logging system
func initLogging(cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetGlobalLogLevel(level)

	if cfg.Log.File != "" {
		if err := logger.Server.SetFile(cfg.Log.File); err != nil {
			return fmt.Errorf("failed to set log file: %w", err)
		}
		logger.Server.Info("Logging to file: %s", cfg.Log.File)
	} else if cfg.Log.Dir != "" {
		if err := logger.InitializeFileLogging(cfg.Log.Dir); err != nil {
			logger.Server.Warn("Could not initialize file logging: %v", err)
		}
	}
	return nil
}

// startHealth serves /health and, when enabled, registers the instance in consul
func startHealth(cfg *config.Config, store *lobby.Store, coordinator *shutdown.Coordinator) {
	health := cluster.NewHealthAggregator()
	health.AddCheck("lobby", func() error {
		if !store.Loaded() {
			return errors.New("lobby data not loaded")
		}
		return nil
	})
	health.AddCheck("shutdown", func() error {
		if state := coordinator.State(); state != shutdown.Running {
			return fmt.Errorf("server is %s", state)
		}
		return nil
	})

	_, stop, err := health.Serve(cfg.Server.HealthAddr, logger.Server)
	if err != nil {
		logger.Server.Warn("Health endpoint disabled: %v", err)
		return
	}
	coordinator.Track("health endpoint", stop)

	if !cfg.Consul.Enabled {
		return
	}
	deregister, err := cluster.Register(cluster.Registration{
		ConsulAddr:  cfg.Consul.Address,
		ServiceName: cfg.Consul.ServiceName,
		Port:        cfg.Server.Port,
		HealthAddr:  cfg.Server.HealthAddr,
	}, logger.Server)
	if err != nil {
		logger.Server.Warn("Consul registration failed: %v", err)
		return
	}
	coordinator.Track("consul registration", deregister)
}

// setupGracefulShutdown handles graceful shutdown on interrupt signals
func setupGracefulShutdown(coordinator *shutdown.Coordinator) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Server.Info("Received shutdown signal, stopping server...")
		if err := coordinator.OnInterrupt(); err != nil {
			logger.Server.Warn("Shutdown finished with errors: %v", err)
		}
		os.Exit(0)
	}()
}

func printBanner(cfg *config.Config) {
	title := color.New(color.FgYellow, color.Bold)
	info := color.New(color.FgCyan)

	title.Println("╔═══════════════════════════════════════╗")
	title.Println("║       BOMBERSTUDENT LOBBY SERVER      ║")
	title.Println("╚═══════════════════════════════════════╝")
	info.Printf("  tcp        %s\n", cfg.Address())
	if cfg.Server.WebSocketAddr != "" {
		info.Printf("  websocket  %s%s\n", cfg.Server.WebSocketAddr, server.WebSocketPath)
	}
	if cfg.Server.HealthAddr != "" {
		info.Printf("  health     %s%s\n", cfg.Server.HealthAddr, cluster.HealthPath)
	}
	info.Printf("  data       %s\n\n", cfg.Data.Dir)
}

// showHelp displays help information
func showHelp() {
	fmt.Printf(`BomberStudent lobby server v%s

USAGE:
    %s [OPTIONS]

OPTIONS:
    -config string        YAML configuration file (optional)
    -port int             Server port (default %d)
    -host string          Server host (default "%s")
    -data-dir string      Directory holding mapslist.json and gameslist.json (default "%s")
    -max-sessions int     Maximum concurrent client sessions (default %d)
    -ws-addr string       Also accept clients over WebSocket on this address
    -health-addr string   Serve /health on this address
    -log-level string     Set log level (DEBUG, INFO, WARN, ERROR) (default "INFO")
    -log-file string      Set log file path (optional)
    -help                 Show this help message
    -version              Show version information

Command-line flags override values from the configuration file.

EXAMPLES:
    # Start server with default settings
    %s

    # Start on a specific port with debug logging
    %s -port 9000 -log-level DEBUG

    # Production setup from a config file
    %s -config /etc/bomberstudent/server.yaml

PROTOCOL:
    One command per line over TCP:
      looking for bomberstudent servers
      GET maps/list
      GET game/list
      POST game/create {"name":"<name>","mapId":<id>}
`, version, os.Args[0], config.DefaultPort, config.DefaultHost, config.DefaultDataDir,
		config.DefaultMaxSessions, os.Args[0], os.Args[0], os.Args[0])
}

// showVersion displays version information
func showVersion() {
	fmt.Printf(`BomberStudent lobby server
Version: %s
Build Time: %s
`, version, buildTime)
}

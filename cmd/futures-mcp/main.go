package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alucardeht/futures-mcp/internal/config"
	"github.com/alucardeht/futures-mcp/internal/engine"
	"github.com/alucardeht/futures-mcp/internal/logger"
	"github.com/alucardeht/futures-mcp/internal/mcp"
	"github.com/alucardeht/futures-mcp/internal/tools"
	"github.com/alucardeht/futures-mcp/internal/tools/ideas"
	"github.com/alucardeht/futures-mcp/internal/watcher"
	"github.com/alucardeht/futures-mcp/pkg/version"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to config.yaml (default: ~/.futures-mcp/config.yaml)")
		socketMode  = flag.Bool("socket", false, "serve on a unix socket instead of stdio")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Version)
		return
	}

	if err := run(*configPath, *socketMode); err != nil {
		fmt.Fprintf(os.Stderr, "futures-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, socketMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	// stdout carries the protocol in stdio mode, logs go to stderr
	logger.Init(logger.Config{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: "text",
		Output: os.Stderr,
	})
	log := logger.ForComponent("main")

	eng, err := engine.Open(engine.Options{
		DataDir: cfg.DataDir,
		Policy: engine.GatePolicy{
			CriticalCutoff:       cfg.Gate.CriticalCutoff,
			CriticalValidatedMin: cfg.Gate.CriticalValidatedMin,
			RequireKnowledge:     cfg.Gate.RequireKnowledge,
		},
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	registry := tools.NewRegistry()
	if err := registry.Register(tools.NewHealthTool(func() (int, error) {
		summaries, err := eng.ListIdeas()
		if err != nil {
			return 0, err
		}
		return len(summaries), nil
	})); err != nil {
		return err
	}
	for _, tool := range ideas.GetTools(eng) {
		if err := registry.Register(tool); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.Watcher, cfg.DataDir, eng)
		if err != nil {
			log.Warn("watcher unavailable", "error", err)
		} else if err := w.Start(ctx); err != nil {
			log.Warn("watcher failed to start", "error", err)
		} else {
			defer w.Stop()
		}
	}

	server := mcp.NewServer(registry)
	log.Info("starting", "version", version.Version, "data_dir", cfg.DataDir, "tools", len(registry.Names()))

	if socketMode {
		socket := mcp.NewSocketServer(cfg.Server.SocketPath, server)
		if err := socket.Start(ctx); err != nil {
			return err
		}
		defer socket.Stop()

		<-ctx.Done()
		log.Info("shutting down")
		return nil
	}

	return server.ProcessStream(os.Stdin, os.Stdout)
}

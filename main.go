package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/JaysonAlbert/log-search-mcp/internal/audit"
	"github.com/JaysonAlbert/log-search-mcp/internal/config"
	"github.com/JaysonAlbert/log-search-mcp/internal/logging"
	"github.com/JaysonAlbert/log-search-mcp/internal/mcpserver"
	"github.com/JaysonAlbert/log-search-mcp/internal/search"
	"github.com/JaysonAlbert/log-search-mcp/internal/secrets"
	"github.com/JaysonAlbert/log-search-mcp/internal/sshconn"
	"github.com/JaysonAlbert/log-search-mcp/internal/status"
)

func main() {
	configPath := flag.String("config", "log_search_config.toml", "Path to configuration file")
	flag.Parse()

	config.Load()
	logging.Init(config.Cfg.LogPath)
	defer logging.Close()

	box, err := secrets.Open(config.Cfg.SecretKeyPath)
	if err != nil {
		log.Fatalf("Secrets init: %v", err)
	}

	cfg := config.NewManager(*configPath, box)
	if err := cfg.LoadOrCreate(); err != nil {
		// A broken config file should not take the server down: start with
		// an empty host list so the operator can see the problem via MCP.
		log.Printf("WARNING: invalid configuration: %v, continuing with no hosts", err)
	}

	conns := sshconn.NewManager()

	auditStore, err := audit.Open(config.Cfg.AuditDBPath)
	if err != nil {
		log.Printf("WARNING: audit store disabled: %v", err)
	} else {
		conns.AddEventSink(auditStore.Sink())
		defer auditStore.Close()
	}

	searcher := search.NewSearcher(cfg, conns)
	server := mcpserver.New(cfg, searcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.Cfg.StatusAddr != "" {
		statusSrv := status.New(cfg, conns, auditStore)
		go status.Serve(ctx, config.Cfg.StatusAddr, statusSrv.Router())
	}

	log.Printf("Log search MCP server started (stdio transport, config=%s)", *configPath)

	done := make(chan error, 1)
	go func() {
		done <- server.Run(ctx, os.Stdin, os.Stdout)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("MCP server: %v", err)
		}
	case <-ctx.Done():
		log.Println("Shutting down...")
	}

	conns.ReleaseAll()
	log.Println("Cleanup completed")
}

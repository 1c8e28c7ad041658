package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mbocsi/kiosk/broker"
	"github.com/mbocsi/kiosk/catalog"
	"github.com/mbocsi/kiosk/config"
	"github.com/mbocsi/kiosk/discovery"
	"github.com/mbocsi/kiosk/mcp"
	"github.com/mbocsi/kiosk/services"
	"github.com/mbocsi/kiosk/settings"
	"github.com/mbocsi/kiosk/transport"
	"github.com/mbocsi/kiosk/web"
)

type App struct {
	Web        *web.Server
	MCPServer  mcp.Server
	Dispatcher *transport.Dispatcher
}

func (a *App) Start(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		if err := a.Web.Start(); err != nil {
			errCh <- fmt.Errorf("web server: %w", err)
		}
	}()
	if a.MCPServer != nil {
		go func() {
			if err := a.MCPServer.Run(ctx); err != nil {
				errCh <- fmt.Errorf("mcp server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	slog.Info("Shutting down kiosk")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Web.Shutdown(shutdownCtx); err != nil {
		slog.Error("There was an error when shutting down web server", "error", err.Error())
	}
	if err := a.Dispatcher.Close(); err != nil {
		slog.Error("There was an error when closing the dispatcher", "error", err.Error())
	}
	return runErr
}

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	closer, err := config.SetupLogger(cfg.Log, cfg.MCP.Mode == mcp.ModeStdio)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(cfg); err != nil {
		slog.Error("Kiosk stopped with error", "error", err.Error())
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	store, err := settings.OpenFileStore(cfg.Settings.Path)
	if err != nil {
		return err
	}

	c, err := catalog.Load(cfg.Catalog.Artisans, cfg.Catalog.Questions)
	if err != nil {
		return err
	}
	slog.Info("Loaded catalog", "artisans", c.Len(), "commands", len(c.Commands()))

	passwordHash := cfg.Maintenance.PasswordHash
	if passwordHash == "" && cfg.Maintenance.Password != "" {
		if passwordHash, err = services.HashPassword(cfg.Maintenance.Password); err != nil {
			return err
		}
	}

	var browse services.BrowseFunc
	if cfg.Discovery.Enabled {
		browse = discovery.NewBrowseFunc(cfg.Discovery.Service, cfg.DiscoveryTimeout())
	}

	dispatcher := transport.NewDispatcher(transport.WithLifetime(cfg.HandleLifetime()))
	b := broker.NewBroker()

	serviceManager, err := services.NewServiceManager(services.Dependencies{
		Catalog:    c,
		Store:      store,
		Defaults:   cfg.DefaultEndpoint(),
		Dispatcher: dispatcher,
		Publisher:  b,
		Browse:     browse,
		Maintenance: services.MaintenanceConfig{
			PasswordHash: passwordHash,
			TapCount:     cfg.Maintenance.TapCount,
			TapWindow:    cfg.TapWindow(),
			SessionTTL:   cfg.SessionTTL(),
			Secret:       []byte(cfg.Maintenance.TokenSecret),
		},
	})
	if err != nil {
		dispatcher.Close()
		return err
	}
	svc := serviceManager.GetServices()

	app := &App{
		Web:        web.NewServer(cfg.HTTP.Addr, svc, b),
		Dispatcher: dispatcher,
	}
	if cfg.MCP.Mode != mcp.ModeOff {
		mcpServer := mcp.NewMCPServer(cfg.MCP.Mode, cfg.MCP.Addr)
		mcp.NewTools(svc).Register(mcpServer)
		app.MCPServer = mcpServer
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Start(ctx)
}

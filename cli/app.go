package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/tooltailor/daemon"
	"github.com/petal-labs/tooltailor/logging"
	"github.com/petal-labs/tooltailor/tool"
)

// app is the wiring shared by every command: config, store, logger and the
// customization service built on them.
type app struct {
	config     daemon.ConfigFile
	configPath string
	service    *tool.CustomizationService
	logger     *slog.Logger

	closeStore func() error
	syncLogs   func()
}

// loadApp resolves configuration from the command's flags. observer may be nil.
func loadApp(cmd *cobra.Command, observer tool.Observer) (*app, error) {
	explicitConfig, _ := cmd.Flags().GetString("config")
	storePath, _ := cmd.Flags().GetString("store-path")
	logLevel, _ := cmd.Flags().GetString("log-level")
	if strings.TrimSpace(logLevel) == "" {
		logLevel = os.Getenv(logging.EnvLogLevel)
	}

	logger, syncLogs, err := logging.NewLogger(logLevel, cmd.ErrOrStderr())
	if err != nil {
		return nil, exitError(exitValidation, "%v", err)
	}

	configPath, _, err := daemon.DiscoverConfigPath(explicitConfig)
	if err != nil {
		syncLogs()
		return nil, exitError(exitValidation, "%v", err)
	}
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		syncLogs()
		return nil, exitError(exitValidation, "%v", err)
	}
	cfg = cfg.WithStorePath(storePath)

	catalog, err := cfg.Catalog()
	if err != nil {
		syncLogs()
		return nil, exitError(exitValidation, "invalid server catalog: %v", err)
	}
	store, closeStore, err := cfg.OpenStore()
	if err != nil {
		syncLogs()
		return nil, exitError(exitRuntime, "opening customization store: %v", err)
	}

	service, err := tool.NewCustomizationService(tool.ServiceConfig{
		Catalog: catalog,
		Store:   store,
		Discoverer: tool.MCPDiscoverer{
			Stderr:  io.Discard,
			Version: cmd.Root().Version,
		},
		Observer: observer,
		Logger:   logger,
	})
	if err != nil {
		_ = closeStore()
		syncLogs()
		return nil, fmt.Errorf("creating customization service: %w", err)
	}

	if configPath != "" {
		logger.Debug("config loaded", "path", configPath, "servers", len(catalog.Servers()))
	}
	return &app{
		config:     cfg,
		configPath: configPath,
		service:    service,
		logger:     logger,
		closeStore: closeStore,
		syncLogs:   syncLogs,
	}, nil
}

// Close releases the store and flushes logs.
func (a *app) Close() error {
	err := a.closeStore()
	a.syncLogs()
	return err
}

// withApp runs fn against a freshly loaded app and maps its error to an
// exit code.
func withApp(cmd *cobra.Command, fn func(a *app) error) error {
	a, err := loadApp(cmd, nil)
	if err != nil {
		return err
	}
	runErr := commandError(cmd.ErrOrStderr(), fn(a))
	return errors.Join(runErr, a.Close())
}

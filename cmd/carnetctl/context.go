package main

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/config"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/logger"
	"github.com/Voupi/sistema-gestion-addag/internal/platform/runtime"
)

type appOpener func(ctx context.Context, configPath string) (*runtime.App, error)

// openApp loads configuration and connects the configured backends. Logs go
// to stderr at warn level so they do not interleave with command output.
func openApp(ctx context.Context, configPath string) (*runtime.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level := cfg.Log.Level
	if level == "" || level == "info" || level == "debug" {
		level = "warn"
	}
	log, err := logger.New(level, "console")
	if err != nil {
		return nil, err
	}
	return runtime.Build(ctx, cfg, log.Named("carnetctl"))
}

type commandContext struct {
	open       appOpener
	configFlag *string
	kindFlag   *string
	jsonFlag   *bool

	appOnce sync.Once
	app     *runtime.App
	appErr  error
}

func newCommandContext(open appOpener, configFlag, kindFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		open:       open,
		configFlag: configFlag,
		kindFlag:   kindFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureApp(ctx context.Context) (*runtime.App, error) {
	c.appOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.app, c.appErr = c.open(ctx, path)
	})
	return c.app, c.appErr
}

func (c *commandContext) close() {
	if c.app == nil {
		return
	}
	if err := c.app.Log.Sync(); err != nil {
		c.app.Log.Debug("sync logger", zap.Error(err))
	}
	c.app.Close()
}

func (c *commandContext) kind() (domain.RecordKind, error) {
	raw := "membership"
	if c.kindFlag != nil && strings.TrimSpace(*c.kindFlag) != "" {
		raw = *c.kindFlag
	}
	return domain.ParseRecordKind(raw)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withApp resolves the kind and the wired services before running fn.
func (c *commandContext) withApp(ctx context.Context, fn func(*runtime.App, domain.RecordKind) error) error {
	kind, err := c.kind()
	if err != nil {
		return err
	}
	app, err := c.ensureApp(ctx)
	if err != nil {
		return err
	}
	return fn(app, kind)
}

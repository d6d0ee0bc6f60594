// Package app wires the keyshift components together and manages their
// lifecycle: the engine, the Lua runtime, the profile reloader and watcher,
// and the platform device that feeds and receives input.
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/config"
	"github.com/dshills/keyshift/internal/input"
	"github.com/dshills/keyshift/internal/input/key"
	"github.com/dshills/keyshift/internal/output"
	"github.com/dshills/keyshift/internal/script"
)

// Device is the platform side: it delivers input to the engine and takes
// the engine's output.
type Device interface {
	output.Sender
	Run(ctx context.Context, p input.Processor) error
	Close() error
}

// Options configures the application.
type Options struct {
	// ConfigPath is the profile file. Empty runs with no bindings.
	ConfigPath string

	// Watch reloads the profile when the file changes.
	Watch bool

	// Logger receives all log output. Defaults to the logrus standard
	// logger.
	Logger *logrus.Logger

	// LogLevel overrides the profile's log_level when set.
	LogLevel string

	// Names, when set, is called with the engine's key name table before
	// the profile is applied.
	Names func(*key.Names)

	// ShutdownTimeout bounds how long Shutdown waits for queued output and
	// callbacks.
	// Default: 5s
	ShutdownTimeout time.Duration
}

// Application owns every running component.
type Application struct {
	opts   Options
	log    *logrus.Logger
	device Device

	engine   *input.Engine
	scripts  *script.Runtime
	reloader *config.Reloader
	watcher  *config.Watcher

	running      atomic.Bool
	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates the application. The profile, if any, is loaded once here so
// engine settings can be applied; bindings are registered by Run.
func New(opts Options, device Device) (*Application, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	app := &Application{opts: opts, log: opts.Logger, device: device}

	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap creates the components in dependency order.
func (app *Application) bootstrap() error {
	cfg := input.DefaultConfig()

	// 1. Profile, for engine settings and log level
	if app.opts.ConfigPath != "" {
		profile, err := config.Load(app.opts.ConfigPath)
		if err == nil {
			err = profile.ApplyEnv(nil)
		}
		if err != nil {
			return &InitError{Component: "config", Err: err}
		}
		cfg = profile.EngineConfig(cfg)
		if lvl, ok := profile.Level(); ok && app.opts.LogLevel == "" {
			app.log.SetLevel(lvl)
		}
	}
	if app.opts.LogLevel != "" {
		lvl, err := logrus.ParseLevel(app.opts.LogLevel)
		if err != nil {
			return &InitError{Component: "logging", Err: err}
		}
		app.log.SetLevel(lvl)
	}

	// 2. Engine
	app.engine = input.New(cfg, app.device,
		input.WithLogger(app.log),
		input.WithLayerObserver(func(active []int) {
			app.log.WithField("layers", active).Debug("app: active layers changed")
		}),
	)
	if app.opts.Names != nil {
		app.opts.Names(app.engine.Names())
	}

	// 3. Scripts
	app.scripts = script.New(app.engine,
		script.WithLogger(app.log),
		script.WithNames(app.engine.Names()),
	)

	// 4. Profile reloading
	if app.opts.ConfigPath != "" {
		app.reloader = config.NewReloader(app.opts.ConfigPath, app.engine, app.scripts,
			config.WithReloadLogger(app.log),
		)
		if app.opts.Watch {
			app.watcher = config.NewWatcher(app.opts.ConfigPath, app.reload,
				config.WithWatchLogger(app.log),
			)
		}
	}
	return nil
}

// Engine returns the engine.
func (app *Application) Engine() *input.Engine {
	return app.engine
}

// Run starts every component and feeds device input to the engine until
// ctx is done or the device stops. It shuts everything down before
// returning.
func (app *Application) Run(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	if err := app.engine.Start(); err != nil {
		return &InitError{Component: "engine", Err: err}
	}
	if app.reloader != nil {
		if err := app.reloader.Reload(); err != nil {
			return errors.Join(&InitError{Component: "profile", Err: err}, app.Shutdown())
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if app.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := app.watcher.Run(ctx); err != nil {
				app.log.WithError(err).Warn("app: profile watcher stopped")
			}
		}()
	}

	app.log.Info("app: running")
	err := app.device.Run(ctx, app.engine)
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return errors.Join(err, app.Shutdown())
}

func (app *Application) reload() {
	if err := app.reloader.Reload(); err != nil {
		app.log.WithError(err).Error("app: profile reload failed; keeping previous profile")
	}
}

// Shutdown stops components in reverse order. It is safe to call more
// than once.
func (app *Application) Shutdown() error {
	app.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), app.opts.ShutdownTimeout)
		defer cancel()

		var errs []error
		if app.reloader != nil {
			if err := app.reloader.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if app.running.Load() {
			if err := app.engine.Stop(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		app.scripts.Close()
		if err := app.device.Close(); err != nil {
			errs = append(errs, err)
		}
		app.shutdownErr = errors.Join(errs...)
		app.log.Info("app: stopped")
	})
	return app.shutdownErr
}

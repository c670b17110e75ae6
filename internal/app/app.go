// Package app wires the photo organizer's services together from a Config.
package app

import (
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/nikbrunner/gorg/internal/logger"
	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/relocate"
	"github.com/nikbrunner/gorg/internal/resolver"
	"github.com/nikbrunner/gorg/internal/storage"
	"github.com/nikbrunner/gorg/internal/store"
	"github.com/nikbrunner/gorg/internal/validation"
)

// NewContainer creates the DI container for cfg. Services are built lazily
// on first invocation; the media index is only built in scoped mode.
func NewContainer(cfg *storage.Config, log *slog.Logger) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)
	do.Provide(injector, ProvideStorage)
	do.Provide(injector, ProvideValidator)

	// Records
	do.Provide(injector, ProvidePhotos)
	do.Provide(injector, ProvideFolders)

	// Media
	do.Provide(injector, ProvideMediaIndex)
	do.Provide(injector, ProvideResolver)
	do.Provide(injector, ProvideEngine)

	return injector
}

// ProvideStorage opens the settings backend.
func ProvideStorage(i do.Injector) (storage.Storage, error) {
	cfg := do.MustInvoke[*storage.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	s, err := storage.OpenStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	log.Debug("settings opened", "backend", fmt.Sprintf("%T", s))
	return s, nil
}

// ProvideValidator provides the input validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvidePhotos provides the metadata record store.
func ProvidePhotos(i do.Injector) (*store.Photos, error) {
	s := do.MustInvoke[storage.Storage](i)
	log := do.MustInvoke[*slog.Logger](i)
	return store.NewPhotos(s, store.Options{Logger: log.With("component", "photos")}), nil
}

// ProvideFolders provides the folder name registry.
func ProvideFolders(i do.Injector) (*store.Folders, error) {
	s := do.MustInvoke[storage.Storage](i)
	log := do.MustInvoke[*slog.Logger](i)
	return store.NewFolders(s, store.Options{Logger: log.With("component", "folders")}), nil
}

// ProvideMediaIndex opens the media index.
func ProvideMediaIndex(i do.Injector) (*media.SQLiteIndex, error) {
	cfg := do.MustInvoke[*storage.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	if cfg.Legacy() {
		return nil, fmt.Errorf("media index: not available in %s mode", cfg.Mode)
	}
	idx, err := media.NewSQLiteIndex(cfg.MediaDBPath(), cfg.MediaBlobDir(), log.With("component", "media"))
	if err != nil {
		return nil, fmt.Errorf("open media index: %w", err)
	}
	log.Debug("media index opened", "path", cfg.MediaDBPath())
	return idx, nil
}

// ProvideResolver provides the media location resolver.
func ProvideResolver(i do.Injector) (*resolver.Resolver, error) {
	cfg := do.MustInvoke[*storage.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	opts := resolver.Options{
		Photos:  do.MustInvoke[*store.Photos](i),
		Folders: do.MustInvoke[*store.Folders](i),
		Logger:  log.With("component", "resolver"),
	}
	if cfg.Legacy() {
		opts.LegacyRoot = cfg.LegacyRoot()
	} else {
		idx, err := do.Invoke[*media.SQLiteIndex](i)
		if err != nil {
			return nil, err
		}
		opts.Index = idx
	}
	return resolver.New(opts), nil
}

// ProvideEngine provides the relocation engine.
func ProvideEngine(i do.Injector) (*relocate.Engine, error) {
	cfg := do.MustInvoke[*storage.Config](i)
	log := do.MustInvoke[*slog.Logger](i)

	opts := relocate.Options{
		Photos:    do.MustInvoke[*store.Photos](i),
		Folders:   do.MustInvoke[*store.Folders](i),
		Validator: do.MustInvoke[*validation.Validator](i),
		Logger:    log.With("component", "relocate"),
	}
	if cfg.Legacy() {
		opts.LegacyRoot = cfg.LegacyRoot()
	} else {
		idx, err := do.Invoke[*media.SQLiteIndex](i)
		if err != nil {
			return nil, err
		}
		opts.Index = idx
	}
	return relocate.New(opts), nil
}

// App holds the services a front end works with.
type App struct {
	Config   *storage.Config
	Log      *slog.Logger
	Photos   *store.Photos
	Folders  *store.Folders
	Resolver *resolver.Resolver
	Engine   *relocate.Engine

	injector *do.RootScope
}

// New builds every service for cfg. A nil log discards output.
// Call Close to release the databases.
func New(cfg *storage.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = logger.Discard()
	}
	injector := NewContainer(cfg, log)

	a := &App{Config: cfg, Log: log, injector: injector}
	var err error
	if a.Photos, err = do.Invoke[*store.Photos](injector); err != nil {
		injector.Shutdown()
		return nil, err
	}
	a.Folders = do.MustInvoke[*store.Folders](injector)
	if a.Resolver, err = do.Invoke[*resolver.Resolver](injector); err != nil {
		injector.Shutdown()
		return nil, err
	}
	a.Engine = do.MustInvoke[*relocate.Engine](injector)
	return a, nil
}

// Close shuts every service down.
func (a *App) Close() error {
	if report := a.injector.Shutdown(); report != nil && !report.Succeed {
		return report
	}
	return nil
}

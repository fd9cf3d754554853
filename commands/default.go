package commands

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/modelcache"
	"github.com/ggoodman/typehierarchy-go/modelcache/memory"
)

// ErrDefaultInitialized is returned by InitDefault once the process-wide
// dispatcher exists.
var ErrDefaultInitialized = errors.New("commands: default dispatcher already initialized")

// DefaultTable is the process-wide host command table.
var DefaultTable = NewTable()

var (
	defaultOnce       sync.Once
	defaultDispatcher *Dispatcher
	defaultErr        error
)

// DefaultConfig chooses the collaborators of the process-wide dispatcher.
// Zero fields get an in-memory cache of DefaultCapacity models, a fresh
// document.Store and a discard logger.
type DefaultConfig struct {
	Cache     modelcache.Cache
	Documents DocumentOpener
	Logger    *slog.Logger
}

// InitDefault creates the process-wide dispatcher from cfg, bound to
// hierarchy.Default(), and installs its commands into DefaultTable. It fails
// with ErrDefaultInitialized when InitDefault or Default already ran.
func InitDefault(cfg DefaultConfig) (*Dispatcher, error) {
	ran := false
	defaultOnce.Do(func() {
		ran = true
		initDefault(cfg)
	})
	if !ran {
		return nil, ErrDefaultInitialized
	}
	return defaultDispatcher, defaultErr
}

// Default returns the process-wide dispatcher, creating it with a zero
// DefaultConfig when InitDefault was never called.
func Default() *Dispatcher {
	defaultOnce.Do(func() { initDefault(DefaultConfig{}) })
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultDispatcher
}

func initDefault(cfg DefaultConfig) {
	if cfg.Cache == nil {
		cache, err := memory.New(modelcache.DefaultCapacity)
		if err != nil {
			defaultErr = err
			return
		}
		cfg.Cache = cache
	}
	if cfg.Documents == nil {
		cfg.Documents = document.NewStore()
	}
	var opts []Option
	if cfg.Logger != nil {
		opts = append(opts, WithLogger(cfg.Logger))
	}
	d := New(hierarchy.Default(), cfg.Cache, cfg.Documents, opts...)
	if err := d.Install(DefaultTable); err != nil {
		defaultErr = err
		return
	}
	defaultDispatcher = d
}

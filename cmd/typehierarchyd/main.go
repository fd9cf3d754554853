// Command typehierarchyd serves type hierarchy queries over stdio, either as
// a language server or as an MCP server exposing the typeHierarchy commands
// as tools.
//
// It is configured from the environment; see internal/config.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ggoodman/typehierarchy-go/commands"
	"github.com/ggoodman/typehierarchy-go/document"
	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/internal/config"
	"github.com/ggoodman/typehierarchy-go/internal/logctx"
	"github.com/ggoodman/typehierarchy-go/lspserver"
	"github.com/ggoodman/typehierarchy-go/mcptools"
	"github.com/ggoodman/typehierarchy-go/modelcache"
	"github.com/ggoodman/typehierarchy-go/modelcache/memory"
	"github.com/ggoodman/typehierarchy-go/modelcache/redis"
	"github.com/ggoodman/typehierarchy-go/providers/lspclient"
	"github.com/ggoodman/typehierarchy-go/providers/static"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "typehierarchyd:", err)
		os.Exit(1)
	}
}

type stdrwc struct {
	io.Reader
	io.Writer
}

func (stdrwc) Close() error {
	return errors.Join(os.Stdin.Close(), os.Stdout.Close())
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	log := slog.New(logctx.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dmn, err := setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer dmn.close(context.WithoutCancel(ctx))

	switch cfg.Transport {
	case config.TransportMCP:
		s, err := mcptools.New(dmn.dispatcher, "typehierarchyd", version, mcptools.WithLogger(log))
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "serving mcp on stdio", slog.Any("tools", s.Tools()))
		return s.Run(ctx, &mcp.StdioTransport{})
	default:
		s, err := dmn.lspServer(log)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "serving lsp on stdio")
		return s.Serve(ctx, stdrwc{Reader: os.Stdin, Writer: os.Stdout})
	}
}

// daemon is the process-wide wiring: the default registry, the default
// dispatcher and the documents they share.
type daemon struct {
	registry   *hierarchy.Registry
	docs       *document.Store
	dispatcher *commands.Dispatcher
	closers    []func(context.Context)
}

// setup registers the configured providers on hierarchy.Default() and
// initializes commands.Default() over them. It can run once per process.
func setup(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *daemon, err error) {
	reg := hierarchy.Default()
	reg.SetLogger(log)
	dmn := &daemon{
		registry: reg,
		docs:     document.NewStore(document.WithStoreLogger(log)),
	}
	defer func() {
		if err != nil {
			dmn.close(context.WithoutCancel(ctx))
		}
	}()

	if cfg.StaticGraph != "" {
		g, err := static.Load(cfg.StaticGraph)
		if err != nil {
			return nil, err
		}
		sel := g.Selector()
		if cfg.StaticLanguage != "" {
			for i := range sel {
				sel[i].Language = cfg.StaticLanguage
			}
		}
		reg.Register(sel, g, hierarchy.WithProviderID("static"))
		log.InfoContext(ctx, "static hierarchy loaded", slog.String("path", cfg.StaticGraph), slog.Int("nodes", g.Len()))
	}

	if argv := cfg.ServerArgv(); len(argv) > 0 {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		root := document.FileURI(filepath.Clean(wd))
		c, err := lspclient.Spawn(ctx, argv, lspclient.WithLogger(log), lspclient.WithRootURI(root))
		if err != nil {
			return nil, err
		}
		dmn.onClose(func(ctx context.Context) { _ = c.Close(ctx) })
		lang := cfg.ServerLanguage
		if lang == "" {
			lang = "*"
		}
		reg.Register(document.Selector{{Language: lang, Scheme: "file"}}, c, hierarchy.WithProviderID(argv[0]))
	}

	if cfg.Watch {
		w, err := document.NewWatcher(dmn.docs, log)
		if err != nil {
			return nil, err
		}
		dmn.onClose(func(context.Context) { _ = w.Close() })
		go w.Run(ctx)
	}

	cache, err := openCache(ctx, cfg, reg)
	if err != nil {
		return nil, err
	}
	dmn.onClose(func(context.Context) { _ = cache.Close() })

	d, err := commands.InitDefault(commands.DefaultConfig{Cache: cache, Documents: dmn.docs, Logger: log})
	if err != nil {
		return nil, err
	}
	dmn.dispatcher = d
	return dmn, nil
}

// lspServer serves workspace/executeCommand from commands.DefaultTable.
func (dmn *daemon) lspServer(log *slog.Logger) (*lspserver.Server, error) {
	return lspserver.New(dmn.dispatcher, dmn.docs,
		lspserver.WithLogger(log),
		lspserver.WithServerInfo("typehierarchyd", version),
		lspserver.WithCommandTable(commands.DefaultTable),
	)
}

func (dmn *daemon) onClose(fn func(context.Context)) {
	dmn.closers = append(dmn.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (dmn *daemon) close(ctx context.Context) {
	for i := len(dmn.closers) - 1; i >= 0; i-- {
		dmn.closers[i](ctx)
	}
	dmn.closers = nil
}

func openCache(ctx context.Context, cfg config.Config, reg *hierarchy.Registry) (modelcache.Cache, error) {
	if cfg.Cache == config.CacheRedis {
		return redis.Dial(ctx, cfg.Redis, reg)
	}
	capacity := cfg.Redis.Capacity
	if capacity == 0 {
		capacity = modelcache.DefaultCapacity
	}
	return memory.New(capacity)
}

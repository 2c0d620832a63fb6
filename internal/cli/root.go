// Package cli is the enricher command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/mining-enricher/internal/acquire"
	"github.com/joseph-ayodele/mining-enricher/internal/cache"
	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/core"
	"github.com/joseph-ayodele/mining-enricher/internal/llm"
	"github.com/joseph-ayodele/mining-enricher/internal/llm/openai"
	"github.com/joseph-ayodele/mining-enricher/internal/repository"
	"github.com/joseph-ayodele/mining-enricher/internal/scorer"
)

type options struct {
	dbDriver string
	dbURL    string
	inmem    bool
	logJSON  bool
	logLevel string
}

// app holds the configuration and lazily opened dependencies of one invocation.
type app struct {
	opts    options
	cfg     *common.Config
	logger  *slog.Logger
	db      *repository.DB
	closers []func()
}

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "enricher",
		Short:         "Enrich mining project records from their technical reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	f := root.PersistentFlags()
	f.StringVar(&a.opts.dbDriver, "db-driver", "", "database driver: postgres or sqlite (env DB_DRIVER)")
	f.StringVar(&a.opts.dbURL, "db-url", "", "database DSN (env DB_URL)")
	f.BoolVar(&a.opts.inmem, "inmem", false, "use a throwaway in-memory SQLite database")
	f.BoolVar(&a.opts.logJSON, "log-json", false, "log as JSON (env LOG_FORMAT=json)")
	f.StringVar(&a.opts.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")

	root.AddCommand(
		newMigrateCmd(a),
		newHealthCmd(a),
		newProjectCmd(a),
		newDocumentCmd(a),
		newAcquireCmd(a),
		newSelectCmd(a),
		newExtractCmd(a),
		newRunCmd(a),
		newExportCmd(a),
		newServeCmd(a),
	)
	return root, a
}

func (a *app) init(cmd *cobra.Command) error {
	cfg := common.LoadConfig()
	if a.opts.dbDriver != "" {
		cfg.Database.Driver = a.opts.dbDriver
	}
	if a.opts.dbURL != "" {
		cfg.Database.DSN = a.opts.dbURL
	}
	if a.opts.inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ":memory:"
	}
	if a.opts.logJSON {
		cfg.Log.Format = "json"
	}
	if a.opts.logLevel != "" {
		cfg.Log.Level = a.opts.logLevel
	}
	a.cfg = cfg
	a.logger = common.NewLogger(cmd.ErrOrStderr(), cfg.Log)
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// store opens the database once per invocation. In-memory databases are
// migrated on open since nothing else could have created their tables.
func (a *app) store(ctx context.Context) (*repository.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := repository.Open(ctx, repository.ConfigFrom(a.cfg.Database), a.logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	if a.opts.inmem {
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
	}
	a.db = db
	return db, nil
}

type repos struct {
	projects  repository.ProjectStore
	documents repository.DocumentRepository
	jobs      repository.ExtractJobRepository
}

func (a *app) repos(ctx context.Context) (repos, error) {
	db, err := a.store(ctx)
	if err != nil {
		return repos{}, err
	}
	return repos{
		projects:  repository.NewProjectRepository(db, a.logger),
		documents: repository.NewDocumentRepository(db, a.logger),
		jobs:      repository.NewExtractJobRepository(db, a.logger),
	}, nil
}

func (a *app) acquirer() *acquire.Acquirer {
	acq := acquire.New(a.cfg.Acquire, a.logger)
	a.closers = append(a.closers, func() {
		if err := acq.Close(); err != nil {
			a.logger.Warn("acquirer close failed", "error", err)
		}
	})
	return acq
}

func (a *app) scorer() (*scorer.Scorer, error) {
	table := scorer.DefaultCategories()
	if path := a.cfg.Scorer.CategoriesFile; path != "" {
		t, err := scorer.LoadCategories(path)
		if err != nil {
			return nil, err
		}
		table = t
	}
	c := a.cfg.Scorer
	return scorer.New(scorer.Config{
		WindowSize:   c.WindowSize,
		Threshold:    c.Threshold,
		Budget:       c.Budget,
		MinLength:    c.MinLength,
		FallbackSize: c.FallbackSize,
	}, table, a.logger), nil
}

func (a *app) adapter(ctx context.Context) (*llm.Adapter, error) {
	if err := a.cfg.ValidateOracle(); err != nil {
		return nil, err
	}
	client := openai.NewClient(openai.Config{
		APIKey:      a.cfg.LLM.APIKey,
		BaseURL:     a.cfg.LLM.BaseURL,
		Model:       a.cfg.LLM.Model,
		Temperature: a.cfg.LLM.Temperature,
		Timeout:     a.cfg.LLM.Timeout,
	}, a.logger)

	var rc cache.ResultCache
	if addr := a.cfg.Cache.RedisAddr; addr != "" {
		redisCache, err := cache.NewRedisCache(ctx, addr, a.cfg.Cache.TTL, a.logger)
		if err != nil {
			// extraction still works uncached
			a.logger.Warn("cache.redis.unavailable", "addr", addr, "error", err)
		} else {
			rc = redisCache
			a.closers = append(a.closers, func() { _ = redisCache.Close() })
		}
	}

	o := a.cfg.Oracle
	return llm.NewAdapter(client, llm.NewRateLimiter(o.RequestsPerSecond, o.Burst), rc, llm.AdapterConfig{
		Attempts:    o.Attempts,
		Backoff:     o.Backoff,
		CallTimeout: o.CallTimeout,
	}, a.logger), nil
}

// processor wires the full pipeline. withStore=false builds one for
// store-free previews.
func (a *app) processor(ctx context.Context, withStore bool) (*core.Processor, repos, error) {
	sc, err := a.scorer()
	if err != nil {
		return nil, repos{}, err
	}
	ad, err := a.adapter(ctx)
	if err != nil {
		return nil, repos{}, err
	}
	var r repos
	if withStore {
		if r, err = a.repos(ctx); err != nil {
			return nil, repos{}, err
		}
	}
	proc := core.NewProcessor(a.logger, a.acquirer(), sc, ad, r.projects, r.documents, r.jobs, a.cfg.Pipeline.DocumentWorkers)
	return proc, r, nil
}

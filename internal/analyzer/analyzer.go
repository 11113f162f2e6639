// Package analyzer composes introspection, relationship inference and the
// dependency graph into one Schema per connection.
package analyzer

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/tordrt/relschema/internal/cache"
	"github.com/tordrt/relschema/internal/db"
	"github.com/tordrt/relschema/internal/graph"
	"github.com/tordrt/relschema/internal/inflect"
	"github.com/tordrt/relschema/internal/introspect"
	"github.com/tordrt/relschema/internal/relations"
	"github.com/tordrt/relschema/internal/schema"
	"github.com/tordrt/relschema/pkg/logger"
)

// DefaultConcurrency bounds parallel table introspection when Options leaves it unset
const DefaultConcurrency = 4

// Options configures an Analyzer
type Options struct {
	// Concurrency is the number of tables introspected at once. Keep it at or
	// below the connection pool size.
	Concurrency int
	Logger      *logger.Logger
	// Cache is optional and owned by the caller
	Cache *cache.TableCache
	// VersionHint is part of every cache key
	VersionHint string
	Inflector   inflect.Inflector
}

// Analyzer builds schemas for one connection
type Analyzer struct {
	adapter      db.Adapter
	introspector *introspect.Introspector
	connectionID string
	opts         Options
	log          *logger.Logger
}

// New creates an analyzer over an adapter. connectionID identifies the
// connection in results and cache keys.
func New(adapter db.Adapter, connectionID string, opts Options) *Analyzer {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Analyzer{
		adapter:      adapter,
		introspector: introspect.New(adapter),
		connectionID: connectionID,
		opts:         opts,
		log:          log,
	}
}

// ResolveTables lists the catalog and drops the ignored names
func (a *Analyzer) ResolveTables(ctx context.Context, ignore []string) ([]string, error) {
	all, err := a.adapter.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(name string) bool {
		return slices.Contains(ignore, name)
	}), nil
}

// Analyze introspects the tables in parallel and derives relationships and
// the creation order. Per-table failures are collected and returned together
// (see multierr.Errors); on any failure or cancellation no Schema is returned.
func (a *Analyzer) Analyze(ctx context.Context, tables []string) (*schema.Schema, error) {
	engine := a.adapter.Engine()
	log := a.log.WithFields(logrus.Fields{
		"connection": a.connectionID,
		"engine":     engine,
	})

	if err := ctx.Err(); err != nil {
		return nil, &schema.IntrospectionError{Err: err}
	}
	if err := a.adapter.Ping(ctx); err != nil {
		var connErr *schema.ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, &schema.ConnectionError{Engine: engine, Op: "ping", Err: err}
	}

	names := dedupe(tables)
	start := time.Now()

	results := make([]schema.Table, len(names))
	errs := make([]error, len(names))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, name := range names {
		g.Go(func() error {
			// Tables still queued when the context ends are not started
			if err := ctx.Err(); err != nil {
				errs[i] = &schema.IntrospectionError{Table: name, Err: err}
				return nil
			}

			tableStart := time.Now()
			table, err := a.table(ctx, name)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = *table
			log.WithFields(logrus.Fields{
				"table":    name,
				"duration": time.Since(tableStart),
			}).Debug("table introspected")
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &schema.IntrospectionError{Err: err}
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}

	rels := relations.Analyze(results, relations.Options{Inflector: a.opts.Inflector})
	deps := graph.Build(results)
	order := deps.Order()
	deferred := deps.DeferredEdges(order)

	log.WithFields(logrus.Fields{
		"tables":        len(results),
		"relationships": len(rels),
		"deferred":      len(deferred),
		"duration":      time.Since(start),
	}).Info("schema analyzed")

	return &schema.Schema{
		ConnectionID:    a.connectionID,
		Engine:          engine,
		Tables:          results,
		Relationships:   rels,
		DependencyGraph: deps.Map(),
		CreationOrder:   order,
		DeferredEdges:   deferred,
	}, nil
}

// table consults the cache before introspecting and fills it after success
func (a *Analyzer) table(ctx context.Context, name string) (*schema.Table, error) {
	key := cache.Key{ConnectionID: a.connectionID, Table: name, VersionHint: a.opts.VersionHint}
	if a.opts.Cache != nil {
		if cached, ok := a.opts.Cache.Get(key); ok {
			return &cached, nil
		}
	}

	table, err := a.introspector.Introspect(ctx, name)
	if err != nil {
		return nil, err
	}
	if a.opts.Cache != nil {
		a.opts.Cache.Add(key, *table)
	}
	return table, nil
}

// dedupe keeps the first occurrence of each name
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

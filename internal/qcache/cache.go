// Package qcache memoizes compiled queries.
//
// Entries are keyed by a structural hash of the pipeline, the root
// collection and the function registry, so equal pipelines built
// independently share one compilation. Pipelines whose constants cannot be
// hashed bypass the cache.
package qcache

import (
	"fmt"
	"maps"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/compiler"
	"github.com/roach88/aqlc/internal/queryir"
)

// DefaultSize is the entry limit used when none is configured.
const DefaultSize = 5000

// Cache is a bounded, concurrency-safe compile cache.
type Cache struct {
	entries   *lru.TwoQueueCache
	functions *aql.FunctionRegistry
	signature []string
	opts      []compiler.Option

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

type key struct {
	Root       queryir.Expr
	Collection string
	Functions  []string
}

type entry struct {
	pipeline   string
	collection string
	query      *aql.Query
}

// New creates a cache holding at most size compilations. Queries are
// compiled against functions, or the default registry when nil.
func New(size int, functions *aql.FunctionRegistry, opts ...compiler.Option) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New2Q(size)
	if err != nil {
		return nil, fmt.Errorf("qcache: %w", err)
	}
	if functions == nil {
		functions = aql.DefaultFunctions
	}
	return &Cache{
		entries:   entries,
		functions: functions,
		signature: signature(functions),
		opts:      append(opts[:len(opts):len(opts)], compiler.WithFunctions(functions)),
	}, nil
}

// signature lists the registry's mapping so registries with equal content
// share entries.
func signature(r *aql.FunctionRegistry) []string {
	callables := r.Callables()
	sig := make([]string, 0, len(callables))
	for _, c := range callables {
		name, _ := r.Lookup(c)
		sig = append(sig, c+"="+name)
	}
	return sig
}

// Compile returns the compilation of root over collection, compiling on
// a miss. Compile errors are not cached. The returned query is a copy the
// caller may modify.
func (c *Cache) Compile(root queryir.Expr, collection string) (*aql.Query, error) {
	h, err := hashstructure.Hash(key{Root: root, Collection: collection, Functions: c.signature},
		hashstructure.FormatV2, &hashstructure.HashOptions{UseStringer: true})
	if err != nil {
		c.misses.Add(1)
		return compiler.Compile(root, collection, c.opts...)
	}

	pipeline := queryir.Format(root)
	if v, ok := c.entries.Get(h); ok {
		e := v.(*entry)
		if e.pipeline == pipeline && e.collection == collection {
			c.hits.Add(1)
			return clone(e.query), nil
		}
	}

	c.misses.Add(1)
	q, err := compiler.Compile(root, collection, c.opts...)
	if err != nil {
		return nil, err
	}
	c.entries.Add(h, &entry{pipeline: pipeline, collection: collection, query: q})
	return clone(q), nil
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.entries.Len(),
	}
}

// Purge drops every entry. Counters are kept.
func (c *Cache) Purge() {
	c.entries.Purge()
}

func clone(q *aql.Query) *aql.Query {
	out := *q
	out.BindVars = maps.Clone(q.BindVars)
	return &out
}

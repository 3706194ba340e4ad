package cli

import (
	"context"
	"fmt"
	"maps"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/compiler"
	"github.com/roach88/aqlc/internal/qcache"
)

// watchDebounce is the quiet period that ends a burst of changes.
const watchDebounce = 100 * time.Millisecond

// watchSession recompiles a definition file and keeps the compile cache
// across rounds while the function mappings stay the same.
type watchSession struct {
	opts  *CompileOptions
	path  string
	names []string
	cmd   *cobra.Command

	cache     *qcache.Cache
	functions map[string]string
	rounds    int
}

func runWatch(ctx context.Context, opts *CompileOptions, path string, names []string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); err != nil {
		return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("definitions not found: %s", path), nil)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "starting watcher", err)
	}
	defer fsWatcher.Close()

	if err := addWatchPaths(fsWatcher, path); err != nil {
		return WrapExitError(ExitCommandError, "watching definitions", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	s := &watchSession{opts: opts, path: path, names: names, cmd: cmd}
	s.compile(ctx)
	opts.logger().Info("watching definitions", "path", path)

	watchLoop(ctx, fsWatcher.Events, fsWatcher.Errors, relevantTo(path), func(name string) {
		opts.logger().Debug("definitions changed", "file", name)
		s.compile(ctx)
	}, func(err error) {
		opts.logger().Warn("watcher error", "error", err)
	})
	return nil
}

// addWatchPaths watches the directory holding a definition file, or a
// CUE package directory with its subdirectories. Editors often replace
// files on save, so the file itself is not watched.
func addWatchPaths(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.Add(filepath.Dir(path))
	}
	return filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if fi.IsDir() {
			if strings.HasPrefix(fi.Name(), ".") && p != path {
				return filepath.SkipDir
			}
			return w.Add(p)
		}
		return nil
	})
}

// relevantTo matches events for the definition file, or for any .cue
// file when path is a package directory.
func relevantTo(path string) func(string) bool {
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return func(name string) bool { return filepath.Ext(name) == ".cue" }
	}
	want := filepath.Clean(path)
	return func(name string) bool { return filepath.Clean(name) == want }
}

// watchLoop calls onChange once a burst of write and create events
// accepted by relevant has been quiet for the debounce period, passing the
// last changed name. Each event restarts the period. It returns when ctx is
// done or a channel closes; a pending change is flushed when the events
// channel closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, relevant func(string) bool, onChange func(string), onError func(error)) {
	timer := time.NewTimer(watchDebounce)
	timer.Stop()
	defer timer.Stop()

	var pending string
	flush := func() {
		if pending == "" {
			return
		}
		name := pending
		pending = ""
		onChange(name)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				flush()
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !relevant(event.Name) {
				continue
			}
			pending = event.Name
			timer.Reset(watchDebounce)

		case <-timer.C:
			flush()

		case err, ok := <-errs:
			if !ok {
				return
			}
			onError(err)
		}
	}
}

// compile runs one round. Failures are reported and the watch goes on.
func (s *watchSession) compile(ctx context.Context) {
	s.rounds++
	formatter := s.opts.formatter(s.cmd)
	logger := s.opts.logger()

	defs, errs := LoadDefinitions(s.path, s.opts.config())
	if len(errs) > 0 {
		_ = formatter.Errors("Definitions invalid", errs)
		return
	}

	if s.cache == nil || !maps.Equal(s.functions, defs.Functions) {
		cache, err := qcache.New(s.opts.config().CacheSize, defs.Registry, compiler.WithLogger(logger))
		if err != nil {
			_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
			return
		}
		s.cache, s.functions = cache, defs.Functions
	}

	result, entries, errs := compileDefinitions(defs, s.cache, s.names, s.opts.Params)
	if len(errs) > 0 {
		_ = formatter.Errors("Compilation failed", errs)
		return
	}

	if s.opts.OutDir != "" {
		files, err := writeQueryFiles(s.opts.OutDir, result.Queries)
		if err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output files: %v", err), nil)
			return
		}
		result.Files = files
	}
	if db := databasePath(s.opts.Database, s.opts.config()); db != "" {
		runID, err := recordRun(ctx, db, s.path, entries)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, fmt.Sprintf("recording run: %v", err), nil)
			return
		}
		result.RunID = runID
	}

	stats := s.cache.Stats()
	logger.Debug("watch round compiled",
		"round", s.rounds,
		"queries", len(result.Queries),
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses)
	_ = outputCompileSuccess(formatter, result)
}

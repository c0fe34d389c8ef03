// Package session runs one analysis request end to end: extraction, the
// per-record analysis fan-out, the result cache and the history store.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ieee-cs-bmsit/structsight/internal/analyzer"
	"github.com/ieee-cs-bmsit/structsight/internal/cache"
	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
	"github.com/ieee-cs-bmsit/structsight/internal/store"
)

// Result is the outcome of one request. Extraction failures are reported
// through Success and ErrorMessage, never as a Go error.
type Result struct {
	Success      bool                `json:"success"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
	Layouts      []layout.Descriptor `json:"layouts"`
	RunID        string              `json:"runId,omitempty"`
	Cached       bool                `json:"cached,omitempty"`
}

// Recorder persists completed runs.
type Recorder interface {
	RecordRun(ctx context.Context, run store.Run, layouts []layout.Descriptor) error
}

// Options configures a Session. The zero value analyzes with GOMAXPROCS
// workers and neither caches nor records.
type Options struct {
	Jobs    int
	Cache   *cache.Cache
	History Recorder
	Now     func() time.Time
}

// Session analyzes requests with a fixed extractor.
type Session struct {
	extractor extract.Extractor
	opts      Options
}

// New returns a session using ex to measure records.
func New(ex extract.Extractor, opts Options) *Session {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{extractor: ex, opts: opts}
}

func failure(err error) Result {
	return Result{Success: false, ErrorMessage: err.Error(), Layouts: []layout.Descriptor{}}
}

// Analyze extracts the requested records and analyzes each of them for the
// request's architecture. Layouts keep extraction order.
func (s *Session) Analyze(ctx context.Context, req extract.Request) Result {
	log := Logger().With(zap.String("file", req.FilePath), zap.String("struct", req.StructName))

	var key cache.Key
	if s.opts.Cache != nil {
		if req.Source == nil && req.FilePath != "" {
			src, err := os.ReadFile(req.FilePath)
			if err != nil {
				return failure(fmt.Errorf("read %s: %w", req.FilePath, err))
			}
			req.Source = src
		}
		key = cache.KeyFor(req)

		layouts, err := s.opts.Cache.Get(key)
		switch {
		case err == nil:
			log.Debug("cache hit", zap.Stringer("key", key))
			return s.finish(ctx, req, Result{Success: true, Layouts: layouts, Cached: true})
		case !errors.Is(err, cache.ErrMiss):
			log.Warn("cache read failed", zap.Error(err))
		}
	}

	records, err := s.extractor.Extract(ctx, req)
	if err != nil {
		log.Debug("extraction failed", zap.Error(err))
		return failure(err)
	}
	records = extract.Filter(records, req.StructName)

	layouts, err := s.analyzeAll(ctx, records, req.Arch.PointerSize())
	if err != nil {
		return failure(err)
	}

	if s.opts.Cache != nil {
		if err := s.opts.Cache.Put(key, layouts); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}

	return s.finish(ctx, req, Result{Success: true, Layouts: layouts})
}

// analyzeAll runs the analyzer over records with at most Jobs goroutines,
// each writing its own slot.
func (s *Session) analyzeAll(ctx context.Context, records []layout.Descriptor, pointerSize uint64) ([]layout.Descriptor, error) {
	out := make([]layout.Descriptor, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Jobs)

	for i := range records {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = analyzer.AnalyzeLayout(records[i], pointerSize)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// finish assigns the run ID and records the run.
func (s *Session) finish(ctx context.Context, req extract.Request, res Result) Result {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	res.RunID = id.String()

	if s.opts.History != nil {
		run := store.Run{
			ID:        res.RunID,
			CreatedAt: s.opts.Now(),
			FilePath:  req.FilePath,
			Arch:      req.Arch.String(),
			Compiler:  string(req.Compiler),
		}
		if err := s.opts.History.RecordRun(ctx, run, res.Layouts); err != nil {
			Logger().Warn("history write failed", zap.String("run", res.RunID), zap.Error(err))
		}
	}

	Logger().Debug("analysis complete",
		zap.String("run", res.RunID),
		zap.Int("records", len(res.Layouts)),
		zap.Bool("cached", res.Cached),
	)
	return res
}

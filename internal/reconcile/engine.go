// Package reconcile drives every enabled CI provider towards the requested
// state of a list of projects.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/bincrafters/envy/internal/logging"
	"github.com/bincrafters/envy/internal/metrics"
	"github.com/bincrafters/envy/internal/pool"
	"github.com/bincrafters/envy/internal/progress"
	"github.com/bincrafters/envy/pkg/envvar"
	"github.com/bincrafters/envy/pkg/provider"
)

type Mode string

const (
	ModeAdd    Mode = "add"
	ModeRemove Mode = "remove"
)

var errNotRun = errors.New("not run")

// Request describes one run. Desired and Encrypted are only used in ModeAdd;
// in ModeRemove each project is a glob pattern.
type Request struct {
	Projects  []string
	Desired   envvar.Set
	Encrypted envvar.Names
	Mode      Mode
	Force     bool
}

// PairResult is the outcome of one project on one provider.
type PairResult struct {
	Project  string
	Provider string
	Mode     Mode
	Duration time.Duration
	Err      error
}

type Result struct {
	Pairs []PairResult
}

// Failed reports whether any pair failed.
func (r *Result) Failed() bool {
	for _, p := range r.Pairs {
		if p.Err != nil {
			return true
		}
	}
	return false
}

// Err aggregates the errors of all failed pairs, or returns nil.
func (r *Result) Err() error {
	var result *multierror.Error
	for _, p := range r.Pairs {
		if p.Err != nil {
			result = multierror.Append(result, fmt.Errorf("%s on %s: %w", p.Project, p.Provider, p.Err))
		}
	}
	return result.ErrorOrNil()
}

// Engine runs requests against a fixed, ordered set of providers.
type Engine struct {
	providers []provider.Provider
	out       io.Writer
	log       *logging.Logger
	confirmer provider.Confirmer
	parallel  int
	bar       *progress.Bar

	outMu     sync.Mutex
	confirmMu sync.Mutex
}

func New(providers ...provider.Provider) *Engine {
	return &Engine{
		providers: providers,
		out:       io.Discard,
		log:       logging.NewNop(),
		parallel:  1,
	}
}

// WithOutput sets where progress lines are printed.
func (e *Engine) WithOutput(out io.Writer) *Engine {
	e.out = out
	return e
}

func (e *Engine) WithLogger(log *logging.Logger) *Engine {
	e.log = log
	return e
}

func (e *Engine) WithConfirmer(c provider.Confirmer) *Engine {
	e.confirmer = c
	return e
}

// WithParallel sets how many pairs may run at once.
func (e *Engine) WithParallel(n int) *Engine {
	e.parallel = max(n, 1)
	return e
}

func (e *Engine) WithProgress(bar *progress.Bar) *Engine {
	e.bar = bar
	return e
}

// Run reconciles every project on every provider, projects first. A failing
// pair is recorded and does not stop the others.
func (e *Engine) Run(ctx context.Context, req Request) *Result {
	n := len(req.Projects) * len(e.providers)
	result := &Result{Pairs: make([]PairResult, n)}
	for i := range result.Pairs {
		result.Pairs[i] = PairResult{
			Project:  req.Projects[i/len(e.providers)],
			Provider: e.providers[i%len(e.providers)].Name(),
			Mode:     req.Mode,
			Err:      errNotRun,
		}
	}

	e.bar.AddMax(n)
	defer e.bar.Finish()

	err := pool.New(e.parallel).Run(ctx, n, func(ctx context.Context, i int) {
		defer e.bar.Add(1)
		p := e.providers[i%len(e.providers)]
		result.Pairs[i] = e.execute(ctx, p, result.Pairs[i].Project, req)
	})
	if err != nil {
		e.log.Warnf("run interrupted: %v", err)
		for i := range result.Pairs {
			if errors.Is(result.Pairs[i].Err, errNotRun) {
				result.Pairs[i].Err = fmt.Errorf("%w: %w", errNotRun, err)
			}
		}
	}

	metrics.RunEnded()
	return result
}

func (e *Engine) execute(ctx context.Context, p provider.Provider, project string, req Request) PairResult {
	startTime := time.Now()
	res := PairResult{Project: project, Provider: p.Name(), Mode: req.Mode}

	e.printf("updating project %s on %s...\n", project, p.Name())

	out := &lockedWriter{mu: &e.outMu, w: e.out}

	var err error
	switch req.Mode {
	case ModeRemove:
		err = Remove(ctx, p, project, req.Force, e.lockedConfirmer(), out)
	default:
		err = Add(ctx, p, project, out)
		if err == nil {
			err = p.Update(ctx, project, req.Desired, req.Encrypted)
		}
	}

	res.Duration = time.Since(startTime)
	res.Err = err

	if err != nil {
		e.printf("updating project %s on %s...FAIL\n%v\n", project, p.Name(), err)
		e.log.Err(err, "reconciliation failed", map[string]string{"project": project, "provider": p.Name(), "mode": string(req.Mode)})
		metrics.PairFailed(p.Name(), string(req.Mode), startTime)
		return res
	}

	e.printf("updating project %s on %s...OK\n", project, p.Name())
	e.log.Debugf("project %s on %s reconciled in %v", project, p.Name(), res.Duration)
	metrics.PairSucceeded(p.Name(), string(req.Mode), startTime)
	return res
}

func (e *Engine) printf(format string, args ...any) {
	e.outMu.Lock()
	defer e.outMu.Unlock()
	fmt.Fprintf(e.out, format, args...)
}

// lockedConfirmer serializes prompts across concurrently running pairs.
func (e *Engine) lockedConfirmer() provider.Confirmer {
	if e.confirmer == nil {
		return nil
	}
	return provider.ConfirmFunc(func(ctx context.Context, question string, items []string) (bool, error) {
		e.confirmMu.Lock()
		defer e.confirmMu.Unlock()
		return e.confirmer.Confirm(ctx, question, items)
	})
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Package tasks ejecuta unidades de trabajo asíncronas (escaneos,
// revalidaciones) con concurrencia acotada.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxAttempts reintentos diferidos antes de descartar una tarea
const DefaultMaxAttempts = 30

// Func unidad de trabajo
type Func func(ctx context.Context) error

// Submitter punto de envío fire-and-forget
type Submitter interface {
	Submit(name string, fn Func)
}

// Deferrer lo implementan los errores que piden reintentar más tarde
type Deferrer interface {
	RetryAfter() time.Duration
}

// Runner pool de workers sobre errgroup. Un error que implementa Deferrer
// reprograma la tarea; cualquier otro error solo se registra.
type Runner struct {
	ctx         context.Context
	group       errgroup.Group
	pending     sync.WaitGroup
	maxAttempts int
	log         zerolog.Logger
}

// NewRunner crea el pool; ctx cancela tareas en curso y descarta las diferidas
func NewRunner(ctx context.Context, workers int, log zerolog.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}

	r := &Runner{ctx: ctx, maxAttempts: DefaultMaxAttempts, log: log}
	r.group.SetLimit(workers)
	return r
}

// WithMaxAttempts cambia el límite de intentos
func (r *Runner) WithMaxAttempts(n int) *Runner {
	r.maxAttempts = n
	return r
}

// Submit encola fn sin bloquear al llamador
func (r *Runner) Submit(name string, fn Func) {
	r.submit(name, fn, 1)
}

func (r *Runner) submit(name string, fn Func, attempt int) {
	if r.ctx.Err() != nil {
		r.log.Warn().Str("task", name).Msg("Runner stopped, task dropped")
		return
	}

	r.pending.Add(1)
	go r.group.Go(func() error {
		defer r.pending.Done()
		r.run(name, fn, attempt)
		return nil
	})
}

func (r *Runner) run(name string, fn Func, attempt int) {
	start := time.Now()
	err := fn(r.ctx)

	var deferred Deferrer
	switch {
	case err == nil:
		r.log.Debug().
			Str("task", name).
			Dur("duration", time.Since(start)).
			Msg("Task finished")
	case errors.As(err, &deferred) && attempt < r.maxAttempts:
		r.log.Info().
			Str("task", name).
			Int("attempt", attempt).
			Dur("retry_after", deferred.RetryAfter()).
			Msg("Task deferred")
		r.later(name, fn, attempt+1, deferred.RetryAfter())
	default:
		r.log.Error().Err(err).Str("task", name).Int("attempt", attempt).Msg("Task failed")
	}
}

// later se llama desde una tarea en curso, por lo que pending nunca está en
// cero al sumar
func (r *Runner) later(name string, fn Func, attempt int, after time.Duration) {
	r.pending.Add(1)

	go func() {
		defer r.pending.Done()

		timer := time.NewTimer(after)
		defer timer.Stop()

		select {
		case <-r.ctx.Done():
			r.log.Warn().Str("task", name).Msg("Runner stopped, deferred task dropped")
		case <-timer.C:
			r.submit(name, fn, attempt)
		}
	}()
}

// Wait bloquea hasta que no queden tareas en curso ni diferidas
func (r *Runner) Wait() {
	r.pending.Wait()
	_ = r.group.Wait()
}

var _ Submitter = (*Runner)(nil)

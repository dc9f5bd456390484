package limiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/asaavedra/printscan/pkg/kv"
	"github.com/rs/zerolog"
)

const (
	// KeyPrefix prefijo del contador por subred
	KeyPrefix = "printers:revalidate:subnet:"
	// DefaultCounterTTL evita contadores huérfanos de workers caídos
	DefaultCounterTTL = 30 * time.Minute
	// DefaultRetryAfter espera antes de reintentar una tarea rechazada
	DefaultRetryAfter = 60 * time.Second
)

// RetryLaterError la subred está saturada; la tarea debe reprogramarse
type RetryLaterError struct {
	Label string
	After time.Duration
}

func (e *RetryLaterError) Error() string {
	return fmt.Sprintf("subnet %s at capacity, retry in %s", e.Label, e.After)
}

// RetryAfter demora sugerida antes del reintento
func (e *RetryLaterError) RetryAfter() time.Duration {
	return e.After
}

// SubnetGuard limita el trabajo concurrente por etiqueta de subred con un
// contador compartido. Es best-effort: el TTL limpia contadores perdidos.
type SubnetGuard struct {
	store      kv.Store
	ttl        time.Duration
	retryAfter time.Duration
	log        zerolog.Logger
}

// NewSubnetGuard crea el guard con TTL y demora por defecto
func NewSubnetGuard(store kv.Store, log zerolog.Logger) *SubnetGuard {
	return &SubnetGuard{
		store:      store,
		ttl:        DefaultCounterTTL,
		retryAfter: DefaultRetryAfter,
		log:        log,
	}
}

// WithRetryAfter cambia la demora de reintento
func (g *SubnetGuard) WithRetryAfter(d time.Duration) *SubnetGuard {
	g.retryAfter = d
	return g
}

func noop() {}

// Acquire incrementa el contador de label. Si supera max lo revierte y
// devuelve *RetryLaterError. Sin label o con max <= 0 no hace nada. La
// función devuelta libera el cupo y puede llamarse más de una vez.
func (g *SubnetGuard) Acquire(ctx context.Context, label string, max int) (func(), error) {
	if label == "" || max <= 0 {
		return noop, nil
	}

	key := KeyPrefix + label

	current, err := kv.Increment(ctx, g.store, key, 1, g.ttl)
	if err != nil {
		g.log.Warn().Err(err).Str("subnet", label).Msg("Subnet counter unavailable, continuing unguarded")
		return noop, nil
	}

	if current > int64(max) {
		g.decrement(context.WithoutCancel(ctx), key, label)
		return nil, &RetryLaterError{Label: label, After: g.retryAfter}
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.decrement(context.WithoutCancel(ctx), key, label) })
	}, nil
}

func (g *SubnetGuard) decrement(ctx context.Context, key, label string) {
	if _, err := kv.Increment(ctx, g.store, key, -1, g.ttl); err != nil {
		g.log.Error().Err(err).Str("subnet", label).Msg("Failed to release subnet slot")
	}
}

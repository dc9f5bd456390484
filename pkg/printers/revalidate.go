package printers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/asaavedra/printscan/pkg/store"
	"github.com/asaavedra/printscan/pkg/tasks"
	"golang.org/x/sync/errgroup"
)

// DefaultStaleThreshold antigüedad tras la que una impresora sin chequeo se
// marca inactiva
const DefaultStaleThreshold = 7 * 24 * time.Hour

// RevalidateRequest revalidación de una impresora. Con Subnet y
// MaxConcurrent > 0 se limita la concurrencia por subred.
type RevalidateRequest struct {
	PrinterID     int64
	Subnet        string
	MaxConcurrent int
}

// Revalidate ejecuta Discover y registra duración y promedio del chequeo.
// Devuelve *limiter.RetryLaterError si la subred está saturada; una
// impresora inexistente no es error.
func (s *Service) Revalidate(ctx context.Context, req RevalidateRequest) error {
	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, req.Subnet, req.MaxConcurrent)
		if err != nil {
			return err
		}
		defer release()
	}

	p, err := s.store.FindByID(ctx, req.PrinterID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Debug().Int64("printer_id", req.PrinterID).Msg("Printer gone, skipping revalidation")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load printer %d: %w", req.PrinterID, err)
	}

	prevAvg := p.AvgCheckDurationMs
	started := s.now()

	if _, err := s.Discover(ctx, p); err != nil {
		s.log.Warn().Err(err).Int64("printer_id", p.ID).Msg("Revalidation discovery failed")
	}

	finished := s.now()
	duration := finished.Sub(started).Milliseconds()

	err = s.store.UpdateFields(context.WithoutCancel(ctx), p.ID, store.Fields{
		store.FieldLastCheckedAt:     finished,
		store.FieldLastCheckDuration: duration,
		store.FieldAvgCheckDuration:  MovingAverage(prevAvg, duration),
	})
	if err != nil {
		return fmt.Errorf("failed to record check of printer %d: %w", p.ID, err)
	}
	return nil
}

// MovingAverage media exponencial 80/20; sin promedio previo vale current
func MovingAverage(prev *int64, current int64) int64 {
	if prev == nil {
		return current
	}
	return int64(math.Round(float64(*prev)*0.8 + float64(current)*0.2))
}

// RevalidateAll encola una revalidación por impresora en orden de id
func (s *Service) RevalidateAll(ctx context.Context, submitter tasks.Submitter, subnet string, maxConcurrent int) (int, error) {
	printers, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list printers: %w", err)
	}

	for _, p := range printers {
		req := RevalidateRequest{PrinterID: p.ID, Subnet: subnet, MaxConcurrent: maxConcurrent}
		submitter.Submit(fmt.Sprintf("revalidate printer %d", p.ID), func(ctx context.Context) error {
			return s.Revalidate(ctx, req)
		})
	}

	s.log.Info().Int("printers", len(printers)).Str("subnet", subnet).Msg("Revalidation queued")
	return len(printers), nil
}

// MarkStale desactiva las impresoras sin chequeo desde now-threshold
func (s *Service) MarkStale(ctx context.Context, now time.Time, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}

	changed, err := s.store.MarkStale(ctx, now.Add(-threshold))
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale printers: %w", err)
	}

	s.log.Info().Int("changed", changed).Dur("threshold", threshold).Msg("Stale printers marked inactive")
	return changed, nil
}

// RefreshReport resumen de RefreshIdentities
type RefreshReport struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// RefreshIdentities ejecuta Discover sobre todas las impresoras, o solo
// sobre las que no tienen identidad completa si onlyEmpty.
func (s *Service) RefreshIdentities(ctx context.Context, onlyEmpty bool) (RefreshReport, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return RefreshReport{}, fmt.Errorf("failed to list printers: %w", err)
	}

	var pending []*store.Printer
	for _, p := range all {
		if !onlyEmpty || p.MissingIdentity() {
			pending = append(pending, p)
		}
	}

	report := RefreshReport{Total: len(pending)}
	if len(pending) == 0 {
		return report, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.refreshWorkers)

	for _, p := range pending {
		g.Go(func() error {
			_, err := s.Discover(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors++
				s.log.Error().Err(err).Int64("printer_id", p.ID).Str("ip", p.IP).Msg("Identity refresh failed")
				return nil
			}
			report.Processed++
			return nil
		})
	}
	_ = g.Wait()

	s.log.Info().
		Int("total", report.Total).
		Int("processed", report.Processed).
		Int("errors", report.Errors).
		Msg("Identity refresh finished")

	return report, ctx.Err()
}

// Package kv abstrae el almacenamiento clave/valor compartido entre workers:
// snapshots de escaneo y contadores por subred. Solo se requiere
// lectura-modificación-escritura atómica por clave.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrConflict la actualización no pudo aplicarse tras varios intentos
var ErrConflict = errors.New("kv: concurrent update conflict")

// UpdateFunc recibe el valor actual (found=false si no existe) y devuelve el
// nuevo valor a guardar
type UpdateFunc func(current []byte, found bool) ([]byte, error)

// Store almacén clave/valor con TTL
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Update aplica fn de forma atómica y renueva el TTL
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Increment suma delta al contador decimal guardado en key y devuelve el
// valor resultante
func Increment(ctx context.Context, s Store, key string, delta int64, ttl time.Duration) (int64, error) {
	var result int64

	_, err := s.Update(ctx, key, ttl, func(current []byte, found bool) ([]byte, error) {
		var n int64
		if found && len(current) > 0 {
			parsed, err := strconv.ParseInt(string(current), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("counter %s is not numeric: %w", key, err)
			}
			n = parsed
		}

		result = n + delta
		return []byte(strconv.FormatInt(result, 10)), nil
	})
	if err != nil {
		return 0, err
	}

	return result, nil
}

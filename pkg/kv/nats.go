package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const maxUpdateAttempts = 32

// NatsStore implementa Store sobre un bucket KV de JetStream. El TTL es del
// bucket: se cuenta desde la última escritura de cada clave.
type NatsStore struct {
	nc    *nats.Conn
	kv    jetstream.KeyValue
	owned bool
}

// NewNatsStore conecta a natsURL y crea (o actualiza) el bucket
func NewNatsStore(ctx context.Context, natsURL, bucket string, ttl time.Duration) (*NatsStore, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	store, err := NewNatsStoreFromConn(ctx, nc, bucket, ttl)
	if err != nil {
		nc.Close()
		return nil, err
	}

	store.owned = true
	return store, nil
}

// NewNatsStoreFromConn reutiliza una conexión existente; Close no la cierra
func NewNatsStoreFromConn(ctx context.Context, nc *nats.Conn, bucket string, ttl time.Duration) (*NatsStore, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	config := jetstream.KeyValueConfig{
		Bucket: bucket,
	}
	if ttl > 0 {
		config.TTL = ttl
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket %s: %w", bucket, err)
	}

	return &NatsStore{nc: nc, kv: kv}, nil
}

// natsKey adapta la clave al alfabeto de NATS KV: ':' separa tokens igual
// que '.', cualquier otro carácter no válido pasa a '_'.
func natsKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ':':
			return '.'
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '/' || r == '_' || r == '=' || r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}

// Get implementa Store
func (n *NatsStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := n.kv.Get(ctx, natsKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return entry.Value(), true, nil
}

// Put implementa Store. ttl se ignora: lo define el bucket.
func (n *NatsStore) Put(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := n.kv.Put(ctx, natsKey(key), value); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}
	return nil
}

// Update usa la revisión de la entrada como CAS y reintenta ante conflicto
func (n *NatsStore) Update(ctx context.Context, key string, _ time.Duration, fn UpdateFunc) ([]byte, error) {
	k := natsKey(key)

	for range maxUpdateAttempts {
		entry, err := n.kv.Get(ctx, k)
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			next, err := fn(nil, false)
			if err != nil {
				return nil, err
			}

			if _, err := n.kv.Create(ctx, k, next); err != nil {
				if isRevisionConflict(err) {
					continue
				}
				return nil, fmt.Errorf("failed to create key %s: %w", key, err)
			}
			return next, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get key %s: %w", key, err)
		}

		next, err := fn(entry.Value(), true)
		if err != nil {
			return nil, err
		}

		if _, err := n.kv.Update(ctx, k, next, entry.Revision()); err != nil {
			if isRevisionConflict(err) {
				continue
			}
			return nil, fmt.Errorf("failed to update key %s: %w", key, err)
		}
		return next, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrConflict, key)
}

func isRevisionConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// Delete implementa Store
func (n *NatsStore) Delete(ctx context.Context, key string) error {
	err := n.kv.Delete(ctx, natsKey(key))
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close cierra la conexión si fue creada por NewNatsStore
func (n *NatsStore) Close() error {
	if n.owned {
		n.nc.Close()
	}
	return nil
}

var _ Store = (*NatsStore)(nil)

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asaavedra/printscan/pkg/kv"
	"github.com/asaavedra/printscan/pkg/serializer"
)

// KeyPrefix prefijo de las claves de snapshot
const KeyPrefix = "printers:scan:"

// KVSink guarda snapshots como JSON en un kv.Store
type KVSink struct {
	store      kv.Store
	ttl        time.Duration
	serializer *serializer.Serializer
}

// NewKVSink crea el sink con la retención estándar
func NewKVSink(store kv.Store) *KVSink {
	return &KVSink{
		store:      store,
		ttl:        SnapshotTTL,
		serializer: serializer.NewSerializer(),
	}
}

// Key clave de almacenamiento del escaneo
func Key(scanID string) string {
	return KeyPrefix + scanID
}

// Put reemplaza el snapshot completo
func (s *KVSink) Put(ctx context.Context, scanID string, snapshot Snapshot) error {
	if snapshot.Detected == nil {
		snapshot.Detected = []Detection{}
	}

	data, err := s.serializer.Serialize(snapshot)
	if err != nil {
		return &SinkError{Sink: "kv", Operation: "put", Key: Key(scanID), Err: err}
	}

	if err := s.store.Put(ctx, Key(scanID), data, s.ttl); err != nil {
		return &SinkError{Sink: "kv", Operation: "put", Key: Key(scanID), Err: err}
	}

	return nil
}

// Get implementa ProgressSink
func (s *KVSink) Get(ctx context.Context, scanID string) (*Snapshot, error) {
	data, found, err := s.store.Get(ctx, Key(scanID))
	if err != nil {
		return nil, &SinkError{Sink: "kv", Operation: "get", Key: Key(scanID), Err: err}
	}
	if !found {
		return nil, nil
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, &SinkError{Sink: "kv", Operation: "get", Key: Key(scanID), Err: err}
	}

	return &snapshot, nil
}

// Merge une fields sobre el snapshot guardado de forma atómica. Un snapshot
// en done/failed no se modifica.
func (s *KVSink) Merge(ctx context.Context, scanID string, fields Fields) error {
	_, err := s.store.Update(ctx, Key(scanID), s.ttl, func(current []byte, found bool) ([]byte, error) {
		doc := make(map[string]json.RawMessage)
		if found && len(current) > 0 {
			if err := json.Unmarshal(current, &doc); err != nil {
				return nil, fmt.Errorf("corrupt snapshot: %w", err)
			}
		}

		if raw, ok := doc["status"]; ok {
			var status ScanStatus
			if err := json.Unmarshal(raw, &status); err == nil && status.Terminal() {
				return nil, ErrSnapshotFinal
			}
		}

		for field, value := range fields {
			if value == nil {
				doc[field] = json.RawMessage("null")
				continue
			}
			encoded, err := s.serializer.Serialize(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			doc[field] = encoded
		}

		return s.serializer.Serialize(doc)
	})
	if err != nil {
		return &SinkError{Sink: "kv", Operation: "merge", Key: Key(scanID), Err: err}
	}

	return nil
}

var _ ProgressSink = (*KVSink)(nil)

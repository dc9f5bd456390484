package serializer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Serializer convierte valores a JSON bytes
// Responsabilidad ÚNICA: Marshall a JSON
// NO escribe a disco, NO decide destino
type Serializer struct {
	indent string
}

// NewSerializer crea un serializador compacto (snapshots en KV)
func NewSerializer() *Serializer {
	return &Serializer{}
}

// NewIndentedSerializer indentación de 2 espacios para archivos legibles
func NewIndentedSerializer() *Serializer {
	return &Serializer{indent: "  "}
}

// Serialize convierte v a JSON sin escapar HTML
func (s *Serializer) Serialize(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("value cannot be nil")
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	// No escapear HTML para que "&" se vea como "&" y no como "\u0026"
	encoder.SetEscapeHTML(false)

	if s.indent != "" {
		encoder.SetIndent("", s.indent)
	}

	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to serialize: %w", err)
	}

	// Encode agrega un newline final, lo removemos
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Package snmptest provee un agente SNMP en memoria para pruebas.
package snmptest

import (
	"context"
	"strings"
	"sync"

	"github.com/asaavedra/printscan/pkg/snmp"
)

// Call registra una consulta recibida
type Call struct {
	Op      string
	IP      string
	OID     string
	Options snmp.Options
}

// Host es un agente simulado. Community vacío acepta cualquiera.
type Host struct {
	Community string
	values    map[string]string
}

// Set define el valor crudo de un OID
func (h *Host) Set(oid, value string) *Host {
	h.values[strings.TrimPrefix(oid, ".")] = value
	return h
}

// Fake implementa snmp.Querier
type Fake struct {
	mu    sync.Mutex
	hosts map[string]*Host
	calls []Call
}

// NewFake crea un agente vacío: todos los hosts son inalcanzables
func NewFake() *Fake {
	return &Fake{hosts: make(map[string]*Host)}
}

// Host devuelve (creándolo si hace falta) el agente de ip
func (f *Fake) Host(ip string) *Host {
	f.mu.Lock()
	defer f.mu.Unlock()

	h, ok := f.hosts[ip]
	if !ok {
		h = &Host{values: make(map[string]string)}
		f.hosts[ip] = h
	}
	return h
}

// Calls devuelve una copia de las consultas recibidas
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo filtra las consultas a un OID
func (f *Fake) CallsTo(oid string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.OID == oid {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) lookup(op string, t snmp.Target, oid string, opts []snmp.Option) (*Host, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: op, IP: t.IP, OID: oid, Options: snmp.Resolve(snmp.Options{}, opts...)})

	h, ok := f.hosts[t.IP]
	if !ok || (h.Community != "" && h.Community != t.Community) {
		return nil, false
	}
	return h, true
}

// Get implementa snmp.Querier
func (f *Fake) Get(ctx context.Context, t snmp.Target, oid string, opts ...snmp.Option) (string, bool) {
	h, ok := f.lookup("get", t, oid, opts)
	if !ok {
		return "", false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := h.values[strings.TrimPrefix(oid, ".")]
	return v, ok
}

// Walk implementa snmp.Querier devolviendo todos los OIDs bajo root
func (f *Fake) Walk(ctx context.Context, t snmp.Target, root string, opts ...snmp.Option) (map[string]string, bool) {
	h, ok := f.lookup("walk", t, root, opts)
	if !ok {
		return nil, false
	}

	prefix := strings.TrimPrefix(root, ".") + "."

	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make(map[string]string)
	for oid, v := range h.values {
		if strings.HasPrefix(oid, prefix) {
			rows[oid] = v
		}
	}
	return rows, true
}

var _ snmp.Querier = (*Fake)(nil)

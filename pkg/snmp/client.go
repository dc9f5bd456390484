package snmp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog"
)

// Versiones SNMP soportadas. "3" está reservada: los campos de seguridad
// existen en la configuración pero no se usan.
const (
	Version1  = "1"
	Version2c = "2c"
	Version3  = "3"
)

// Target identifica el agente a consultar y sus credenciales
type Target struct {
	IP        string
	Community string
	Version   string
}

// Options ajusta una consulta individual
type Options struct {
	Timeout time.Duration
	Retries int
}

// Option modifica Options
type Option func(*Options)

// WithTimeout fija el timeout de la consulta
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithRetries fija los reintentos del transporte
func WithRetries(n int) Option {
	return func(o *Options) { o.Retries = n }
}

// Resolve aplica opts sobre los valores por defecto
func Resolve(defaults Options, opts ...Option) Options {
	o := defaults
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Querier es el contrato que usa el resto del sistema: GET escalar y WALK de
// tabla. Los valores siguen la convención "<TYPE>: <payload>". El segundo
// retorno es false ante timeout, host inalcanzable o error del transporte.
type Querier interface {
	Get(ctx context.Context, t Target, oid string, opts ...Option) (string, bool)
	Walk(ctx context.Context, t Target, root string, opts ...Option) (map[string]string, bool)
}

// Config del cliente nativo
type Config struct {
	Port    uint16
	Timeout time.Duration
	Retries int
}

// DefaultConfig valores por defecto del cliente nativo
func DefaultConfig() Config {
	return Config{
		Port:    161,
		Timeout: 2 * time.Second,
		Retries: 1,
	}
}

// Client implementa Querier sobre gosnmp (v1/v2c)
type Client struct {
	port     uint16
	defaults Options
	log      zerolog.Logger
}

// NewClient crea un nuevo cliente SNMP
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = 161
	}

	return &Client{
		port:     cfg.Port,
		defaults: Options{Timeout: cfg.Timeout, Retries: cfg.Retries},
		log:      log,
	}
}

// Get obtiene un único valor OID
func (c *Client) Get(ctx context.Context, t Target, oid string, opts ...Option) (string, bool) {
	conn, err := c.connect(ctx, t, Resolve(c.defaults, opts...))
	if err != nil {
		c.log.Debug().Err(err).Str("ip", t.IP).Str("oid", oid).Msg("SNMP connect failed")
		return "", false
	}
	defer conn.Conn.Close()

	result, err := conn.Get([]string{oid})
	if err != nil {
		c.log.Debug().Err(err).Str("ip", t.IP).Str("oid", oid).Msg("SNMP GET failed")
		return "", false
	}

	if result == nil || len(result.Variables) == 0 || result.Error != gosnmp.NoError {
		return "", false
	}

	return FormatPDU(result.Variables[0])
}

// Walk recorre todas las hojas bajo root. Una tabla sin filas devuelve un
// mapa vacío y true.
func (c *Client) Walk(ctx context.Context, t Target, root string, opts ...Option) (map[string]string, bool) {
	conn, err := c.connect(ctx, t, Resolve(c.defaults, opts...))
	if err != nil {
		c.log.Debug().Err(err).Str("ip", t.IP).Str("oid", root).Msg("SNMP connect failed")
		return nil, false
	}
	defer conn.Conn.Close()

	rows := make(map[string]string)

	err = conn.Walk(root, func(pdu gosnmp.SnmpPDU) error {
		if value, ok := FormatPDU(pdu); ok {
			rows[strings.TrimPrefix(pdu.Name, ".")] = value
		}
		return nil
	})
	if err != nil {
		c.log.Debug().Err(err).Str("ip", t.IP).Str("oid", root).Msg("SNMP WALK failed")
		return nil, false
	}

	return rows, true
}

// connect establece la sesión SNMP (UDP, sin handshake)
func (c *Client) connect(ctx context.Context, t Target, o Options) (*gosnmp.GoSNMP, error) {
	version, err := ParseVersion(t.Version)
	if err != nil {
		return nil, err
	}

	client := &gosnmp.GoSNMP{
		Target:             t.IP,
		Port:               c.port,
		Community:          t.Community,
		Version:            version,
		Timeout:            o.Timeout,
		Retries:            o.Retries,
		Context:            ctx,
		ExponentialTimeout: false,
		MaxOids:            gosnmp.MaxOids,
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("error conectando a %s: %w", t.IP, err)
	}

	return client, nil
}

// ParseVersion traduce la versión textual de la configuración
func ParseVersion(v string) (gosnmp.SnmpVersion, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case Version1, "v1":
		return gosnmp.Version1, nil
	case Version2c, "v2c", "2", "":
		return gosnmp.Version2c, nil
	default:
		return 0, fmt.Errorf("versión SNMP no soportada: %q", v)
	}
}

var _ Querier = (*Client)(nil)

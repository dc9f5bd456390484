package snmp

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Runner ejecuta un binario externo y devuelve su stdout
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// NetSNMP implementa Querier invocando snmpget/snmpwalk de net-snmp
type NetSNMP struct {
	GetBin   string
	WalkBin  string
	defaults Options
	run      Runner
	log      zerolog.Logger
}

// NewNetSNMP crea el cliente basado en herramientas externas. run nil usa
// os/exec.
func NewNetSNMP(cfg Config, run Runner, log zerolog.Logger) *NetSNMP {
	if run == nil {
		run = execRunner
	}

	return &NetSNMP{
		GetBin:   "snmpget",
		WalkBin:  "snmpwalk",
		defaults: Options{Timeout: cfg.Timeout, Retries: cfg.Retries},
		run:      run,
		log:      log,
	}
}

// Get ejecuta snmpget
func (n *NetSNMP) Get(ctx context.Context, t Target, oid string, opts ...Option) (string, bool) {
	args := n.args(t, Resolve(n.defaults, opts...))
	out, err := n.run(ctx, n.GetBin, append(args, t.IP, oid)...)
	if err != nil {
		n.log.Debug().Err(err).Str("ip", t.IP).Str("oid", oid).Msg("snmpget failed")
		return "", false
	}

	value := StripOID(strings.TrimSpace(string(out)))
	if value == "" || isException(value) {
		return "", false
	}

	return value, true
}

// Walk ejecuta snmpwalk con OIDs numéricos y agrupa las líneas de
// continuación de valores multilínea.
func (n *NetSNMP) Walk(ctx context.Context, t Target, root string, opts ...Option) (map[string]string, bool) {
	args := n.args(t, Resolve(n.defaults, opts...))
	out, err := n.run(ctx, n.WalkBin, append(args, t.IP, root)...)
	if err != nil {
		n.log.Debug().Err(err).Str("ip", t.IP).Str("oid", root).Msg("snmpwalk failed")
		return nil, false
	}

	return parseWalkOutput(out), true
}

func (n *NetSNMP) args(t Target, o Options) []string {
	version := t.Version
	if version == "" {
		version = Version2c
	}

	timeout := int(o.Timeout / time.Second)
	if timeout < 1 {
		timeout = 1
	}

	return []string{
		"-On",
		"-v" + version,
		"-c", t.Community,
		"-t", strconv.Itoa(timeout),
		"-r", strconv.Itoa(o.Retries),
	}
}

func parseWalkOutput(out []byte) map[string]string {
	rows := make(map[string]string)
	last := ""

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()

		oid, value, ok := strings.Cut(line, " = ")
		if !ok {
			if last != "" && strings.TrimSpace(line) != "" {
				rows[last] += "\n" + strings.TrimSpace(line)
			}
			continue
		}

		value = strings.TrimSpace(value)
		if isException(value) {
			last = ""
			continue
		}

		last = strings.TrimPrefix(strings.TrimSpace(oid), ".")
		rows[last] = value
	}

	return rows
}

func isException(value string) bool {
	return strings.HasPrefix(value, "No Such Object") ||
		strings.HasPrefix(value, "No Such Instance") ||
		strings.HasPrefix(value, "No more variables")
}

var _ Querier = (*NetSNMP)(nil)

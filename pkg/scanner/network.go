package scanner

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"net"
	"strconv"
	"strings"
)

// ErrSubnetTooLarge se envuelve en ValidationError cuando el rango supera el
// máximo de hosts permitido.
var ErrSubnetTooLarge = errors.New("subnet too large")

// ValidationError rechaza una entrada antes de iniciar cualquier trabajo
type ValidationError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid subnet %q: %s", e.Input, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Range es un rango contiguo de hosts IPv4 utilizables
type Range struct {
	Input     string
	Network   uint32
	Broadcast uint32
	Prefix    int
	first     uint32
	last      uint32
}

// Parse acepta "192.168.1.0/24" o el formato corto "192.168.1.1-254"
func Parse(s string) (Range, error) {
	if strings.Contains(s, "/") {
		return ParseCIDR(s)
	}
	return ParseIPRange(s)
}

// ParseCIDR valida "A.B.C.D/N" y calcula red y broadcast. Para N >= 31 ambos
// extremos son utilizables; si no, se excluyen red y broadcast.
func ParseCIDR(cidr string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(cidr), "/")
	if len(parts) != 2 {
		return Range{}, &ValidationError{Input: cidr, Reason: "expected A.B.C.D/N"}
	}

	ip, err := parseIPv4(parts[0])
	if err != nil {
		return Range{}, &ValidationError{Input: cidr, Reason: err.Error()}
	}

	prefix, err := strconv.Atoi(parts[1])
	if err != nil || prefix < 0 || prefix > 32 {
		return Range{}, &ValidationError{Input: cidr, Reason: "mask must be between 0 and 32"}
	}

	mask := ^uint32(0) << (32 - prefix)
	network := ip & mask
	broadcast := network | ^mask

	r := Range{
		Input:     cidr,
		Network:   network,
		Broadcast: broadcast,
		Prefix:    prefix,
		first:     network,
		last:      broadcast,
	}

	if prefix < 31 {
		r.first = network + 1
		r.last = broadcast - 1
	}

	return r, nil
}

// ParseIPRange parsea un rango de IPs en formato "192.168.1.1-254"
func ParseIPRange(ipRange string) (Range, error) {
	start, endOctet, ok := strings.Cut(strings.TrimSpace(ipRange), "-")
	if !ok {
		return Range{}, &ValidationError{Input: ipRange, Reason: "use 192.168.1.0/24 or 192.168.1.1-254"}
	}

	ip, err := parseIPv4(start)
	if err != nil {
		return Range{}, &ValidationError{Input: ipRange, Reason: err.Error()}
	}

	end, err := strconv.Atoi(endOctet)
	if err != nil || end < 0 || end > 255 || end < int(ip&0xff) {
		return Range{}, &ValidationError{Input: ipRange, Reason: "final octet out of range"}
	}

	return Range{
		Input:     ipRange,
		Network:   ip &^ 0xff,
		Broadcast: ip | 0xff,
		Prefix:    24,
		first:     ip,
		last:      ip&^0xff | uint32(end),
	}, nil
}

func parseIPv4(s string) (uint32, error) {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}

	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("only IPv4 is supported: %q", s)
	}

	return binary.BigEndian.Uint32(v4), nil
}

// String devuelve la forma canónica red/prefijo o el rango original
func (r Range) String() string {
	if strings.Contains(r.Input, "/") {
		return fmt.Sprintf("%s/%d", formatIP(r.Network), r.Prefix)
	}
	return r.Input
}

// Count cantidad de hosts utilizables
func (r Range) Count() int {
	return int(uint64(r.last) - uint64(r.first) + 1)
}

// CheckLimit falla con ErrSubnetTooLarge si Count supera maxHosts
func (r Range) CheckLimit(maxHosts int) error {
	if maxHosts > 0 && r.Count() > maxHosts {
		return &ValidationError{
			Input:  r.Input,
			Reason: fmt.Sprintf("%d hosts exceeds the limit of %d", r.Count(), maxHosts),
			Err:    ErrSubnetTooLarge,
		}
	}
	return nil
}

// Hosts secuencia perezosa, en orden ascendente, de los hosts utilizables.
// Cada iteración vuelve a empezar desde el primero.
func (r Range) Hosts() iter.Seq[string] {
	return func(yield func(string) bool) {
		for n := uint64(r.first); n <= uint64(r.last); n++ {
			if !yield(formatIP(uint32(n))) {
				return
			}
		}
	}
}

func formatIP(n uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return net.IP(b[:]).String()
}

package scanner

import (
	"context"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

// DefaultPingTimeout espera de una respuesta de eco
const DefaultPingTimeout = 500 * time.Millisecond

// Pinger verifica alcanzabilidad antes de consultar SNMP
type Pinger interface {
	Reachable(ctx context.Context, ip string) bool
}

// PingerFunc adapta una función a Pinger
type PingerFunc func(ctx context.Context, ip string) bool

func (f PingerFunc) Reachable(ctx context.Context, ip string) bool {
	return f(ctx, ip)
}

// ICMPPinger envía un único eco ICMP por host. Intenta primero un socket
// sin privilegios (udp4) y luego uno raw (ip4:icmp).
type ICMPPinger struct {
	timeout time.Duration
	seq     atomic.Uint32
	log     zerolog.Logger
}

// NewICMPPinger crea el pinger; timeout <= 0 usa DefaultPingTimeout
func NewICMPPinger(timeout time.Duration, log zerolog.Logger) *ICMPPinger {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	return &ICMPPinger{timeout: timeout, log: log}
}

func (p *ICMPPinger) listen() (*icmp.PacketConn, bool, error) {
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err == nil {
		return conn, true, nil
	}

	conn, rawErr := icmp.ListenPacket("ip4:icmp", "0.0.0.0")
	if rawErr != nil {
		return nil, false, rawErr
	}
	return conn, false, nil
}

// Reachable devuelve true si llega un echo reply del host dentro del timeout
func (p *ICMPPinger) Reachable(ctx context.Context, ip string) bool {
	dst := net.ParseIP(ip).To4()
	if dst == nil {
		return false
	}

	conn, unprivileged, err := p.listen()
	if err != nil {
		p.log.Debug().Err(err).Msg("Failed to create ICMP listener")
		return false
	}
	defer conn.Close()

	id := os.Getpid() & 0xffff
	seq := int(p.seq.Add(1) & 0xffff)

	msg := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: []byte("printscan")},
	}
	data, err := msg.Marshal(nil)
	if err != nil {
		return false
	}

	var addr net.Addr = &net.IPAddr{IP: dst}
	if unprivileged {
		addr = &net.UDPAddr{IP: dst}
	}

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return false
	}

	if _, err := conn.WriteTo(data, addr); err != nil {
		p.log.Debug().Err(err).Str("ip", ip).Msg("ICMP send failed")
		return false
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return false
		}

		if !samePeer(peer, dst) {
			continue
		}

		reply, err := icmp.ParseMessage(1, buf[:n])
		if err != nil || reply.Type != ipv4.ICMPTypeEchoReply {
			continue
		}

		// En sockets udp4 el kernel reescribe el ID; solo se compara en raw
		if echo, ok := reply.Body.(*icmp.Echo); ok && (unprivileged || echo.ID == id) {
			return true
		}
	}
}

func samePeer(peer net.Addr, dst net.IP) bool {
	switch a := peer.(type) {
	case *net.UDPAddr:
		return a.IP.Equal(dst)
	case *net.IPAddr:
		return a.IP.Equal(dst)
	}
	return false
}

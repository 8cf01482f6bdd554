package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"smartenv/internal/protocol"
	"smartenv/internal/utils"
)

// Datagram layout: dst (6) | src (6) | frame.
const udpHeaderSize = 12

const udpReadPoll = 250 * time.Millisecond

type UDPOptions struct {
	Self   protocol.Addr
	Listen string
	// Peers maps node addresses to UDP endpoints ("host:port").
	Peers map[protocol.Addr]string
	MTU   int
}

// UDP emulates the radio broadcast link over UDP datagrams.
type UDP struct {
	self   protocol.Addr
	mtu    int
	conn   *net.UDPConn
	logger *slog.Logger

	mu    sync.RWMutex
	peers map[protocol.Addr]*net.UDPAddr

	closeOnce sync.Once
}

func NewUDP(opts UDPOptions, logger *slog.Logger) (*UDP, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MTU <= 0 {
		opts.MTU = protocol.MaxFrameSize
	}

	laddr, err := net.ResolveUDPAddr("udp", opts.Listen)
	if err != nil {
		return nil, fmt.Errorf("resolve listen %q: %w", opts.Listen, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", opts.Listen, err)
	}

	u := &UDP{
		self:   opts.Self,
		mtu:    opts.MTU,
		conn:   conn,
		logger: logger,
		peers:  make(map[protocol.Addr]*net.UDPAddr),
	}
	for addr, endpoint := range opts.Peers {
		if err := u.AddPeer(addr, endpoint); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}
	return u, nil
}

// AddPeer registers or replaces the endpoint of a peer node.
func (u *UDP) AddPeer(addr protocol.Addr, endpoint string) error {
	raddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return fmt.Errorf("resolve peer %s (%q): %w", addr, endpoint, err)
	}
	u.mu.Lock()
	u.peers[addr] = raddr
	u.mu.Unlock()
	return nil
}

func (u *UDP) Addr() protocol.Addr { return u.self }

func (u *UDP) MTU() int { return u.mtu }

// LocalAddr is the bound UDP endpoint.
func (u *UDP) LocalAddr() string { return u.conn.LocalAddr().String() }

func (u *UDP) Send(ctx context.Context, to protocol.Addr, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(frame) > u.mtu {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), u.mtu)
	}

	var targets []*net.UDPAddr
	u.mu.RLock()
	if to == protocol.Broadcast {
		for _, p := range u.peers {
			targets = append(targets, p)
		}
	} else if p, ok := u.peers[to]; ok {
		targets = append(targets, p)
	}
	u.mu.RUnlock()
	if len(targets) == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPeer, to)
	}

	dg := make([]byte, udpHeaderSize+len(frame))
	copy(dg[0:6], to[:])
	copy(dg[6:12], u.self[:])
	copy(dg[udpHeaderSize:], frame)

	// No write deadline: it would apply to the shared socket, not this call.

	var errs []error
	for _, t := range targets {
		if _, err := u.conn.WriteToUDP(dg, t); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

// Run reads datagrams until ctx is done. Datagrams addressed to another node
// or too short to carry a header are ignored.
func (u *UDP) Run(ctx context.Context, onFrame func(Frame)) error {
	u.logger.Info("link: listening", "addr", u.self.String(), "udp", u.LocalAddr())

	buf := make([]byte, udpHeaderSize+u.mtu+1)
	for {
		if ctx.Err() != nil {
			u.logger.Info("link: stopped (context canceled)")
			return nil
		}
		_ = u.conn.SetReadDeadline(time.Now().Add(udpReadPoll))
		n, from, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrClosed
			}
			return fmt.Errorf("udp read: %w", err)
		}
		if n < udpHeaderSize {
			u.logger.Debug("link: ignore short datagram", "from", from.String(), "size", n)
			continue
		}

		var f Frame
		copy(f.To[:], buf[0:6])
		copy(f.From[:], buf[6:12])
		if f.To != u.self && f.To != protocol.Broadcast {
			continue
		}
		if n-udpHeaderSize > u.mtu {
			u.logger.Debug("link: ignore oversized frame", "from", f.From.String(), "size", n-udpHeaderSize)
			continue
		}
		f.Data = append([]byte(nil), buf[udpHeaderSize:n]...)
		u.learn(f.From, from)

		u.logger.Debug("link: frame received",
			"from", f.From.String(),
			"size", len(f.Data),
			"data", utils.BytesToHex(f.Data),
		)
		if onFrame != nil {
			onFrame(f)
		}
	}
}

// learn records the endpoint of a sender missing from the peer table so that
// replies can reach it. Configured peers are never overwritten.
func (u *UDP) learn(addr protocol.Addr, from *net.UDPAddr) {
	if addr == protocol.Broadcast || addr.IsZero() {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.peers[addr]; ok {
		return
	}
	u.peers[addr] = from
	u.logger.Debug("link: learned peer", "addr", addr.String(), "udp", from.String())
}

// Close releases the socket. Idempotent.
func (u *UDP) Close() error {
	var err error
	u.closeOnce.Do(func() { err = u.conn.Close() })
	return err
}

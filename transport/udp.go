package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mbocsi/kiosk/proto"
)

// DefaultHandleLifetime is the maximum age of a reused socket.
const DefaultHandleLifetime = 5 * time.Minute

// ListenFunc binds a new outbound datagram socket on an ephemeral port.
type ListenFunc func() (net.PacketConn, error)

// ResolveFunc turns "host:port" into a destination address.
type ResolveFunc func(addr string) (net.Addr, error)

func listenUDP4() (net.PacketConn, error) {
	return net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
}

func resolveUDP4(addr string) (net.Addr, error) {
	return net.ResolveUDPAddr("udp4", addr)
}

type handle struct {
	conn       net.PacketConn
	createdAt  time.Time
	generation uint64
	live       bool
}

// Receipt describes a datagram that was handed to the OS. It is not a
// delivery confirmation.
type Receipt struct {
	Generation uint64
	LocalAddr  string
	Bytes      int
}

// Dispatcher sends fire-and-forget commands over one reused UDP socket.
// Send is safe for concurrent use; sends are serialized so that only one
// socket is ever created at a time and the socket is never written by two
// sends at once.
type Dispatcher struct {
	name     string
	lifetime time.Duration
	now      func() time.Time
	listen   ListenFunc
	resolve  ResolveFunc

	mu         sync.Mutex
	current    *handle
	closed     bool
	generation uint64
	sent       uint64
	failed     uint64
	lastErr    string
}

type Option func(*Dispatcher)

func WithLifetime(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.lifetime = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func WithListener(fn ListenFunc) Option {
	return func(d *Dispatcher) { d.listen = fn }
}

func WithResolver(fn ResolveFunc) Option {
	return func(d *Dispatcher) { d.resolve = fn }
}

func WithName(name string) Option {
	return func(d *Dispatcher) { d.name = name }
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		name:     "udp-dispatcher",
		lifetime: DefaultHandleLifetime,
		now:      time.Now,
		listen:   listenUDP4,
		resolve:  resolveUDP4,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send emits cmd as one datagram to ep. It returns once the OS accepted the
// datagram. Failures are *DispatchError values matching ErrInvalidPort,
// ErrBind or ErrSend. Nothing is retried.
func (d *Dispatcher) Send(ctx context.Context, ep proto.Endpoint, cmd proto.Command) error {
	_, err := d.SendWithReceipt(ctx, ep, cmd)
	return err
}

// SendWithReceipt is Send that also reports which socket generation carried
// the datagram. ctx is only consulted before the send starts.
func (d *Dispatcher) SendWithReceipt(ctx context.Context, ep proto.Endpoint, cmd proto.Command) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	port, err := proto.ParsePort(ep.Port)
	if err != nil {
		slog.Warn("Rejected command", "addr", ep.Address(), "command", cmd, "error", err)
		return Receipt{}, &DispatchError{Kind: ErrInvalidPort, Addr: ep.Address(), Err: err}
	}
	addr := net.JoinHostPort(strings.TrimSpace(ep.Host), strconv.Itoa(port))

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return Receipt{}, ErrClosed
	}

	h, err := d.acquire()
	if err != nil {
		d.failed++
		d.lastErr = err.Error()
		slog.Error("Failed to bind UDP socket", "error", err)
		return Receipt{}, &DispatchError{Kind: ErrBind, Err: err}
	}

	dst, err := d.resolve(addr)
	if err != nil {
		d.markDead(h, err)
		slog.Error("Failed to send command", "addr", addr, "command", cmd, "error", err)
		return Receipt{}, &DispatchError{Kind: ErrSend, Addr: addr, Err: err}
	}

	payload := cmd.Bytes()
	n, err := h.conn.WriteTo(payload, dst)
	if err == nil && n != len(payload) {
		err = io.ErrShortWrite
	}
	if err != nil {
		d.markDead(h, err)
		slog.Error("Failed to send command", "addr", addr, "command", cmd, "error", err)
		return Receipt{}, &DispatchError{Kind: ErrSend, Addr: addr, Err: err}
	}

	d.sent++
	slog.Info("Sent command", "addr", addr, "command", cmd, "size", n, "generation", h.generation)
	return Receipt{Generation: h.generation, LocalAddr: h.conn.LocalAddr().String(), Bytes: n}, nil
}

// acquire returns the current socket or replaces it. Caller holds d.mu.
func (d *Dispatcher) acquire() (*handle, error) {
	now := d.now()
	if h := d.current; h != nil && h.live && now.Sub(h.createdAt) <= d.lifetime {
		return h, nil
	}

	if d.current != nil {
		slog.Info("Recycling UDP socket",
			"generation", d.current.generation,
			"live", d.current.live,
			"age", now.Sub(d.current.createdAt).String())
		d.release()
	}

	conn, err := d.listen()
	if err != nil {
		return nil, err
	}
	d.generation++
	d.current = &handle{conn: conn, createdAt: now, generation: d.generation, live: true}
	slog.Info("UDP socket bound", "local_addr", conn.LocalAddr().String(), "generation", d.generation)
	return d.current, nil
}

func (d *Dispatcher) markDead(h *handle, err error) {
	h.live = false
	d.failed++
	d.lastErr = err.Error()
}

// release closes the current socket. Caller holds d.mu.
func (d *Dispatcher) release() {
	if d.current == nil {
		return
	}
	if err := d.current.conn.Close(); err != nil {
		slog.Debug("Error closing UDP socket", "generation", d.current.generation, "error", err)
	}
	d.current = nil
}

// Recycle drops the current socket so the next Send binds a fresh one.
func (d *Dispatcher) Recycle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil {
		slog.Info("Recycling UDP socket", "generation", d.current.generation, "reason", "requested")
	}
	d.release()
}

// Close releases the socket. Later sends fail with ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.release()
	slog.Info("Dispatcher closed", "name", d.name)
	return nil
}

func (d *Dispatcher) Meta() HandleMetadata {
	d.mu.Lock()
	defer d.mu.Unlock()

	meta := HandleMetadata{
		Name:      d.name,
		Protocol:  "udp4",
		Lifetime:  d.lifetime,
		Binds:     d.generation,
		Sent:      d.sent,
		Failed:    d.failed,
		LastError: d.lastErr,
		Closed:    d.closed,
	}
	if h := d.current; h != nil {
		meta.Bound = true
		meta.Live = h.live
		meta.Generation = h.generation
		meta.LocalAddr = h.conn.LocalAddr().String()
		meta.CreatedAt = h.createdAt
		meta.Age = d.now().Sub(h.createdAt)
	}
	return meta
}

package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/mbocsi/kiosk/proto"
)

const maxDatagram = 2048

// Datagram is one command read off the socket
type Datagram struct {
	Command  proto.Command `json:"command"`
	From     string        `json:"from"`
	Received time.Time     `json:"received"`
}

type ReceiverMetadata struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Protocol  string `json:"protocol"`
	Address   string `json:"address"`
	Received  uint64 `json:"received"`
	Listening bool   `json:"listening"`
}

// Receiver is a stand-in exhibit player. It reads command datagrams and hands
// each one to the OnCommand callback.
type Receiver struct {
	Addr      string
	conn      net.PacketConn
	onCommand func(Datagram)

	name     string
	mu       sync.RWMutex
	received uint64
}

func NewReceiver(addr string) *Receiver {
	return &Receiver{Addr: addr, name: "udp-receiver"}
}

// Listen binds the socket without reading from it
func (r *Receiver) Listen() error {
	conn, err := net.ListenPacket("udp4", r.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", r.Addr, err)
	}
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	slog.Info("Listening for commands", "addr", conn.LocalAddr().String())
	return nil
}

// Start binds the socket if needed and serves until Shutdown
func (r *Receiver) Start() error {
	if r.onCommand == nil {
		return errors.New("the OnCommand function is not defined")
	}
	r.mu.RLock()
	bound := r.conn != nil
	r.mu.RUnlock()
	if !bound {
		if err := r.Listen(); err != nil {
			return err
		}
	}
	return r.serve()
}

func (r *Receiver) serve() error {
	r.mu.RLock()
	conn := r.conn
	r.mu.RUnlock()

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		d := Datagram{
			Command:  proto.Command(string(buf[:n])),
			From:     from.String(),
			Received: time.Now(),
		}
		r.mu.Lock()
		r.received++
		r.mu.Unlock()

		slog.Info("Message received", "command", string(d.Command), "from", d.From, "size", n)
		r.onCommand(d)
	}
}

func (r *Receiver) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	slog.Info("Shutting down udp receiver", "addr", r.conn.LocalAddr().String())
	err := r.conn.Close()
	r.conn = nil
	return err
}

func (r *Receiver) OnCommand(fn func(Datagram)) {
	r.onCommand = fn
}

func (r *Receiver) SetName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
}

// LocalAddr returns the bound address, or nil before Listen
func (r *Receiver) LocalAddr() net.Addr {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil {
		return nil
	}
	return r.conn.LocalAddr()
}

// Port returns the bound UDP port, or 0 before Listen
func (r *Receiver) Port() int {
	if addr, ok := r.LocalAddr().(*net.UDPAddr); ok {
		return addr.Port
	}
	return 0
}

func (r *Receiver) Meta() ReceiverMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	address := r.Addr
	if r.conn != nil {
		address = r.conn.LocalAddr().String()
	}
	return ReceiverMetadata{
		ID:        "udp-" + r.Addr,
		Name:      r.name,
		Protocol:  "udp",
		Address:   address,
		Received:  r.received,
		Listening: r.conn != nil,
	}
}

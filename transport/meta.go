package transport

import "time"

type HandleMetadata struct {
	Name     string        // Human-friendly name, e.g. "Playback device"
	Protocol string        // Always "udp4"
	Lifetime time.Duration // Max socket age before it is recycled

	Bound      bool      // Whether a socket is currently held
	Live       bool      // False once the held socket saw a transport error
	LocalAddr  string    // Ephemeral address the socket is bound to
	CreatedAt  time.Time // When the held socket was bound
	Age        time.Duration
	Generation uint64 // Generation of the held socket, 0 if none

	Binds     uint64 // Sockets bound over the dispatcher's lifetime
	Sent      uint64
	Failed    uint64
	LastError string
	Closed    bool
}

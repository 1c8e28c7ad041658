package proto

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const (
	MinPort = 1
	MaxPort = 65535
)

// Endpoint is the destination of outbound commands. Port is kept as the
// string the settings store holds; it is parsed on every send.
type Endpoint struct {
	Host string `json:"host" yaml:"host"`
	Port string `json:"port" yaml:"port"`
}

// Command is an opaque code interpreted by the playback device
// (e.g. "ERICKSON_BIO"). It is sent as its raw UTF-8 bytes.
type Command string

func (c Command) Bytes() []byte {
	return []byte(c)
}

var ErrPortRange = errors.New("port must be an integer between 1 and 65535")

// ParsePort parses a decimal port string in [MinPort, MaxPort].
func ParsePort(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPortRange, s)
	}
	if n < MinPort || n > MaxPort {
		return 0, fmt.Errorf("%w: %d", ErrPortRange, n)
	}
	return n, nil
}

// Address joins host and port. The port is not validated.
func (e Endpoint) Address() string {
	return net.JoinHostPort(strings.TrimSpace(e.Host), strings.TrimSpace(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}

// ValidateIPv4 accepts dotted-quad IPv4 addresses only, without zero padding.
func ValidateIPv4(host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return errors.New("ip address is required")
	}
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return fmt.Errorf("invalid ip address %q", host)
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 || strings.TrimLeft(p, "0123456789") != "" {
			return fmt.Errorf("invalid ip address %q", host)
		}
		// The resolver does not treat zero-padded octets as an address.
		if len(p) > 1 && p[0] == '0' {
			return fmt.Errorf("invalid ip address %q: leading zero in %q", host, p)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n > 255 {
			return fmt.Errorf("invalid ip address %q", host)
		}
	}
	return nil
}

// Validate is the check the maintenance screen runs before persisting an
// endpoint. Dispatch itself only checks the port.
func (e Endpoint) Validate() error {
	if strings.TrimSpace(e.Host) == "" || strings.TrimSpace(e.Port) == "" {
		return errors.New("both ip address and port are required")
	}
	if err := ValidateIPv4(e.Host); err != nil {
		return err
	}
	if _, err := ParsePort(e.Port); err != nil {
		return err
	}
	return nil
}

package discovery

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/hashicorp/mdns"
)

// Advertiser answers mDNS queries for one service instance
type Advertiser struct {
	server   *mdns.Server
	instance string
	service  string
}

// Advertise announces instance on the local network. ips may be empty, in
// which case the addresses of the host name are used.
func Advertise(instance, service string, port int, ips []net.IP, info []string) (*Advertiser, error) {
	if service == "" {
		service = DefaultService
	}
	zone, err := mdns.NewMDNSService(instance, service, "", "", port, ips, info)
	if err != nil {
		return nil, fmt.Errorf("build mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return nil, fmt.Errorf("start mDNS server: %w", err)
	}
	slog.Info("Advertising service over mDNS", "instance", instance, "service", service, "port", port)
	return &Advertiser{server: server, instance: instance, service: service}, nil
}

func (a *Advertiser) Shutdown() error {
	slog.Info("Stopping mDNS advertisement", "instance", a.instance, "service", a.service)
	return a.server.Shutdown()
}

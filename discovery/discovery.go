package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/mbocsi/kiosk/proto"
	"github.com/mbocsi/kiosk/services"
)

const (
	// DefaultService is the mDNS service type exhibit players advertise
	DefaultService = "_exhibit-player._udp"
	DefaultTimeout = 2 * time.Second
)

// Browse queries the local network for service and returns every IPv4 player
// that answered before the timeout.
func Browse(ctx context.Context, service string, timeout time.Duration) ([]services.DeviceInfo, error) {
	if service == "" {
		service = DefaultService
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entriesCh := make(chan *mdns.ServiceEntry, 16)
	params := mdns.DefaultParams(service)
	params.Timeout = timeout
	params.Entries = entriesCh
	params.DisableIPv6 = true

	errCh := make(chan error, 1)
	go func() {
		defer close(entriesCh)
		errCh <- mdns.Query(params)
	}()

	var devices []services.DeviceInfo
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			// The query goroutine finishes on its own timeout.
			go drain(entriesCh)
			return devices, ctx.Err()
		case entry, ok := <-entriesCh:
			if !ok {
				if err := <-errCh; err != nil {
					return nil, fmt.Errorf("mDNS query for %s: %w", service, err)
				}
				slog.Debug("mDNS browse finished", "service", service, "found", len(devices))
				return devices, nil
			}
			device, ok := fromEntry(entry)
			if !ok || seen[device.Name] {
				continue
			}
			seen[device.Name] = true
			slog.Info("Discovered exhibit player",
				"name", device.Name,
				"host", device.Endpoint.Host,
				"port", device.Endpoint.Port,
			)
			devices = append(devices, device)
		}
	}
}

// NewBrowseFunc binds Browse to a service type for the settings service
func NewBrowseFunc(service string, timeout time.Duration) services.BrowseFunc {
	return func(ctx context.Context) ([]services.DeviceInfo, error) {
		return Browse(ctx, service, timeout)
	}
}

func drain(ch <-chan *mdns.ServiceEntry) {
	for range ch {
	}
}

// fromEntry converts an mDNS answer. Entries without an IPv4 address or port
// are skipped since commands only go to IPv4 hosts.
func fromEntry(entry *mdns.ServiceEntry) (services.DeviceInfo, bool) {
	if entry == nil || entry.AddrV4 == nil || entry.Port <= 0 {
		return services.DeviceInfo{}, false
	}
	ep := proto.Endpoint{
		Host: entry.AddrV4.String(),
		Port: strconv.Itoa(entry.Port),
	}
	if ep.Validate() != nil {
		return services.DeviceInfo{}, false
	}
	return services.DeviceInfo{
		Name:     instanceName(entry.Name),
		Endpoint: ep,
		Info:     entry.InfoFields,
	}, true
}

// instanceName strips the service and domain suffix from a full record name,
// "player-1._exhibit-player._udp.local." becomes "player-1".
func instanceName(name string) string {
	name = strings.TrimSuffix(name, ".")
	if i := strings.Index(name, "._"); i > 0 {
		return name[:i]
	}
	return name
}

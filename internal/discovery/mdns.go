package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type cast receivers advertise
	ServiceType = "_googlecast._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for one-shot discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the protocol TLS port used when an advertisement
	// omits one
	DefaultPort = 8009
)

// browseFunc runs one mDNS browse, delivering entries until ctx ends. The
// entries channel is always closed eventually: by the resolver once ctx is
// done, or here on a startup error. Replaced in tests.
type browseFunc func(ctx context.Context, entries chan *zeroconf.ServiceEntry) error

// zeroconfBrowse is the production browse implementation
func zeroconfBrowse(ctx context.Context, entries chan *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		close(entries)
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		close(entries)
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// Scanner performs one-shot mDNS discovery of cast receivers
type Scanner struct {
	// Timeout is the maximum time to wait for advertisements
	Timeout time.Duration

	browse browseFunc
}

// NewScanner creates an mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		browse:  zeroconfBrowse,
	}
}

// Scan discovers all cast receivers on the local network, collecting
// advertisements until the timeout elapses or ctx is cancelled
func (s *Scanner) Scan(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []*Device, 1)

	go func() {
		var devices []*Device
		seen := make(map[string]bool)
		for entry := range entries {
			device := parseServiceEntry(entry)
			if device == nil || seen[device.ID] {
				continue
			}
			seen[device.ID] = true
			devices = append(devices, device)
		}
		collected <- devices
	}()

	if err := s.browse(ctx, entries); err != nil {
		cancel()
		return nil, err
	}

	<-ctx.Done()
	return <-collected, nil
}

// FindByName discovers receivers until one with the given friendly name (or
// id) appears, or the timeout elapses
func (s *Scanner) FindByName(ctx context.Context, name string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(chan *Device, 1)

	go func() {
		for entry := range entries {
			device := parseServiceEntry(entry)
			if device == nil {
				continue
			}
			if device.Name == name || device.ID == name {
				select {
				case found <- device:
				default:
				}
				cancel()
				return
			}
		}
	}()

	if err := s.browse(ctx, entries); err != nil {
		return nil, err
	}

	select {
	case device := <-found:
		return device, nil
	case <-ctx.Done():
		select {
		case device := <-found:
			return device, nil
		default:
		}
		return nil, fmt.Errorf("no receiver named %q found within %s", name, s.Timeout)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil for entries with no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are "key=value" pairs; cast receivers advertise the
	// device id as "id", friendly name as "fn", and model as "md"
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	id := metadata["id"]
	if id == "" {
		id = entry.Instance
	}
	if id == "" {
		return nil
	}

	return &Device{
		ID:       id,
		Name:     metadata["fn"],
		Model:    metadata["md"],
		Hostname: entry.HostName,
		IP:       ip,
		Port:     port,
		Metadata: metadata,
		LastSeen: time.Now(),
	}
}

// Scan is a convenience function for a one-shot scan with a custom timeout
func Scan(ctx context.Context, timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.Scan(ctx)
}

// QuickScan performs a fast scan with a 3-second timeout
func QuickScan(ctx context.Context) ([]*Device, error) {
	return Scan(ctx, 3*time.Second)
}

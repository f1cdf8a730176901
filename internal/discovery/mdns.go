package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type Hidromotic controllers advertise
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for controller discovery
	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is the default WebSocket port for Hidromotic controllers
	DefaultPort = 80
)

// serialPattern matches Hidromotic controller hostnames
// (e.g., "hidromotic20417.local")
var serialPattern = regexp.MustCompile(`^hidromotic(\d+)\.local\.?$`)

// Scanner handles mDNS controller discovery
type Scanner struct {
	// Timeout is the maximum time to wait for controller discovery
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForControllers discovers all Hidromotic controllers on the local
// network. Controllers that announce themselves more than once during the
// scan window are reported once; results are sorted by serial.
func (s *Scanner) ScanForControllers() ([]*Controller, error) {
	return s.ScanForControllersWithContext(context.Background())
}

// ScanForControllersWithContext discovers controllers with a custom context
func (s *Scanner) ScanForControllersWithContext(ctx context.Context) ([]*Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(map[string]*Controller)
	done := make(chan struct{})

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(done)
		for entry := range entries {
			if c := s.parseServiceEntry(entry); c != nil {
				found[c.Serial] = c
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// Wait for the scan window to elapse and the collector to drain.
	<-ctx.Done()
	<-done

	controllers := make([]*Controller, 0, len(found))
	for _, c := range found {
		controllers = append(controllers, c)
	}
	sort.Slice(controllers, func(i, j int) bool {
		return controllers[i].Serial < controllers[j].Serial
	})
	return controllers, nil
}

// WaitForController waits for a specific controller by serial number.
// Returns the controller or an error if not found within the timeout.
func (s *Scanner) WaitForController(serial string) (*Controller, error) {
	return s.WaitForControllerWithContext(context.Background(), serial)
}

// WaitForControllerWithContext waits for a specific controller with a custom context
func (s *Scanner) WaitForControllerWithContext(ctx context.Context, serial string) (*Controller, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	controllerChan := make(chan *Controller, 1)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		for entry := range entries {
			c := s.parseServiceEntry(entry)
			if c != nil && c.Serial == serial {
				controllerChan <- c
				cancel()
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	select {
	case c := <-controllerChan:
		return c, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("controller with serial %s not found within timeout", serial)
	}
}

// parseServiceEntry converts a zeroconf service entry to a Controller.
// Returns nil if the entry is not a Hidromotic controller.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Controller {
	hostname := entry.HostName
	if hostname == "" {
		return nil
	}

	matches := serialPattern.FindStringSubmatch(hostname)
	if len(matches) < 2 {
		return nil
	}
	serial := matches[1]

	// Prefer IPv4; fall back to IPv6.
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

	// TXT records are in "key=value" format; a bare key maps to "".
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Controller{
		Serial:       serial,
		Hostname:     hostname,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForControllers is a convenience function to scan with a custom timeout
func ScanForControllers(timeout time.Duration) ([]*Controller, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForControllers()
}

// FindController searches for a specific controller by serial number with default timeout
func FindController(serial string) (*Controller, error) {
	scanner := NewScanner()
	return scanner.WaitForController(serial)
}

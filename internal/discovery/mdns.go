// ABOUTME: mDNS discovery of TTS services on the local network
// ABOUTME: The test server advertises; the narrator browses when no URL is configured
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD type TTS services advertise under
	ServiceType = "_narrator-tts._tcp"

	// DefaultTimeout bounds a single lookup
	DefaultTimeout = 3 * time.Second
)

// ErrNotFound is returned when a lookup sees no TTS service
var ErrNotFound = errors.New("no tts service found")

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	log    *slog.Logger
	server *mdns.Server
	query  func(*mdns.QueryParam) error
}

// Service describes a discovered TTS service
type Service struct {
	Name string
	Host string
	Port int
	Path string
}

// URL returns the base URL sources should talk to
func (s Service) URL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + s.Path
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.ServiceName == "" {
		config.ServiceName = "narrator-tts"
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		config: config,
		log:    log.With("component", "discovery"),
		query:  mdns.Query,
	}
}

// Advertise announces a TTS service on the configured port until ctx ends
func (m *Manager) Advertise(ctx context.Context) error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := m.zone(ips)
	if err != nil {
		return err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	m.log.Info("advertising tts service", "name", m.config.ServiceName, "port", m.config.Port, "type", ServiceType)

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()
	return nil
}

func (m *Manager) zone(ips []net.IP) (*mdns.MDNSService, error) {
	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=/"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return service, nil
}

// Lookup browses once and returns the first TTS service that answers
func (m *Manager) Lookup(ctx context.Context) (Service, error) {
	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	entries := make(chan *mdns.ServiceEntry, 10)
	found := make(chan Service, 1)
	consumed := make(chan struct{})

	go func() {
		defer close(consumed)
		for entry := range entries {
			svc, ok := fromEntry(entry)
			if !ok {
				continue
			}
			select {
			case found <- svc:
			default:
			}
		}
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Timeout = m.config.Timeout
	params.Entries = entries
	params.DisableIPv6 = true

	queryErr := make(chan error, 1)
	go func() {
		err := m.query(params)
		close(entries)
		queryErr <- err
	}()

	select {
	case svc := <-found:
		m.log.Info("discovered tts service", "name", svc.Name, "url", svc.URL())
		return svc, nil
	case err := <-queryErr:
		if err != nil {
			return Service{}, fmt.Errorf("mdns query: %w", err)
		}
		// answers buffered before the query returned are still being converted
		<-consumed
		select {
		case svc := <-found:
			m.log.Info("discovered tts service", "name", svc.Name, "url", svc.URL())
			return svc, nil
		default:
		}
		return Service{}, ErrNotFound
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Service{}, ErrNotFound
		}
		return Service{}, ctx.Err()
	}
}

// fromEntry converts an mDNS answer, skipping other service types
func fromEntry(entry *mdns.ServiceEntry) (Service, bool) {
	if entry == nil || !strings.Contains(entry.Name, ServiceType) {
		return Service{}, false
	}

	host := ""
	switch {
	case entry.AddrV4 != nil:
		host = entry.AddrV4.String()
	case entry.AddrV6 != nil:
		host = entry.AddrV6.String()
	default:
		host = strings.TrimSuffix(entry.Host, ".")
	}
	if host == "" || entry.Port == 0 {
		return Service{}, false
	}

	path := ""
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "path="); ok {
			path = strings.TrimRight(v, "/")
		}
	}

	name := strings.TrimSuffix(entry.Name, "."+ServiceType+".local.")
	return Service{Name: name, Host: host, Port: entry.Port, Path: path}, true
}

// Stop shuts down advertisement
func (m *Manager) Stop() {
	if m.server != nil {
		m.server.Shutdown()
	}
}

// getLocalIPs returns the non-loopback IPv4 addresses of interfaces that are up
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}

package discovery

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	// DefaultService is the mDNS service name without domain suffix.
	DefaultService = "_airsync._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
	// DefaultVersion is the TXT record protocol version.
	DefaultVersion = 1
)

var (
	// ErrMissingName indicates an advertisement without an instance name.
	ErrMissingName = errors.New("discovery: device name is required")
	// ErrInvalidPort indicates an advertisement without a usable port.
	ErrInvalidPort = errors.New("discovery: port must be > 0")
	// ErrNoLocalAddress indicates no non-loopback IPv4 address was found.
	ErrNoLocalAddress = errors.New("discovery: no local IPv4 address")
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)

// Identity is how this desktop presents itself to phones.
type Identity struct {
	Name      string
	IPAddress string
	Port      int
}

// Config controls mDNS advertisement.
type Config struct {
	Service string
	Domain  string
	Version int

	Identity Identity

	registerFn registerFunc
}

func (c Config) withDefaults() Config {
	out := c
	if out.Service == "" {
		out.Service = DefaultService
	}
	if out.Domain == "" {
		out.Domain = DefaultDomain
	}
	if out.Version == 0 {
		out.Version = DefaultVersion
	}
	if out.registerFn == nil {
		out.registerFn = zeroconf.Register
	}
	return out
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Identity.Name) == "" {
		return ErrMissingName
	}
	if c.Identity.Port <= 0 {
		return ErrInvalidPort
	}
	return nil
}

// TXTRecords returns the TXT entries published for identity.
func TXTRecords(identity Identity, version int) []string {
	return []string{
		"name=" + identity.Name,
		"ip=" + identity.IPAddress,
		"port=" + strconv.Itoa(identity.Port),
		"version=" + strconv.Itoa(version),
	}
}

// Broadcaster advertises the desktop endpoint via mDNS.
type Broadcaster struct {
	server   *zeroconf.Server
	identity Identity
}

// StartBroadcaster registers and starts mDNS broadcast.
func StartBroadcaster(config Config) (*Broadcaster, error) {
	cfg := config.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	txt := TXTRecords(cfg.Identity, cfg.Version)
	server, err := cfg.registerFn(cfg.Identity.Name, cfg.Service, cfg.Domain, cfg.Identity.Port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}

	return &Broadcaster{server: server, identity: cfg.Identity}, nil
}

// Identity returns what is being advertised.
func (b *Broadcaster) Identity() Identity {
	if b == nil {
		return Identity{}
	}
	return b.identity
}

// Stop stops mDNS broadcasting.
func (b *Broadcaster) Stop() {
	if b == nil || b.server == nil {
		return
	}
	b.server.Shutdown()
}

// LocalIdentity resolves the advertised identity. An empty name falls back
// to the hostname.
func LocalIdentity(name string, port int) Identity {
	name = strings.TrimSpace(name)
	if name == "" {
		name = hostname()
	}
	ip, err := LocalIPAddress()
	if err != nil {
		ip = ""
	}
	return Identity{Name: name, IPAddress: ip, Port: port}
}

// LocalIPAddress returns the IPv4 address used for outbound traffic. No
// packets are sent; the UDP dial only selects a route.
func LocalIPAddress() (string, error) {
	if conn, err := net.Dial("udp4", "8.8.8.8:80"); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && !addr.IP.IsLoopback() {
			return addr.IP.String(), nil
		}
	}
	return firstInterfaceIPv4(net.InterfaceAddrs)
}

func firstInterfaceIPv4(addrsFn func() ([]net.Addr, error)) (string, error) {
	addrs, err := addrsFn()
	if err != nil {
		return "", fmt.Errorf("list interface addresses: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", ErrNoLocalAddress
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || strings.TrimSpace(name) == "" {
		return "AirSync Desktop"
	}
	return strings.TrimSuffix(name, ".local")
}

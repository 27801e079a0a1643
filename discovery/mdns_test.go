package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func TestStartBroadcasterBuildsExpectedTXTRecords(t *testing.T) {
	var (
		gotInstance string
		gotService  string
		gotDomain   string
		gotPort     int
		gotTXT      []string
	)

	cfg := Config{
		Identity: Identity{Name: "Studio Mac", IPAddress: "192.168.1.20", Port: 6996},
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			gotInstance = instance
			gotService = service
			gotDomain = domain
			gotPort = port
			gotTXT = append([]string(nil), text...)
			return nil, nil
		},
	}

	broadcaster, err := StartBroadcaster(cfg)
	if err != nil {
		t.Fatalf("StartBroadcaster failed: %v", err)
	}
	defer broadcaster.Stop()

	if gotInstance != "Studio Mac" {
		t.Fatalf("unexpected instance name: %q", gotInstance)
	}
	if gotService != DefaultService || gotDomain != DefaultDomain {
		t.Fatalf("unexpected service/domain: %q %q", gotService, gotDomain)
	}
	if gotPort != 6996 {
		t.Fatalf("unexpected port: %d", gotPort)
	}
	for _, want := range []string{"name=Studio Mac", "ip=192.168.1.20", "port=6996", "version=1"} {
		assertContainsTXT(t, gotTXT, want)
	}
	if broadcaster.Identity().IPAddress != "192.168.1.20" {
		t.Fatalf("unexpected identity: %+v", broadcaster.Identity())
	}
}

func TestStartBroadcasterValidatesIdentity(t *testing.T) {
	register := func(string, string, string, int, []string, []net.Interface) (*zeroconf.Server, error) {
		t.Fatalf("register must not be called for invalid config")
		return nil, nil
	}
	if _, err := StartBroadcaster(Config{Identity: Identity{Port: 6996}, registerFn: register}); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
	if _, err := StartBroadcaster(Config{Identity: Identity{Name: "x"}, registerFn: register}); !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("expected ErrInvalidPort, got %v", err)
	}
}

func TestStartBroadcasterWrapsRegisterError(t *testing.T) {
	boom := errors.New("multicast unavailable")
	_, err := StartBroadcaster(Config{
		Identity: Identity{Name: "x", Port: 1},
		registerFn: func(string, string, string, int, []string, []net.Interface) (*zeroconf.Server, error) {
			return nil, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped register error, got %v", err)
	}
}

func TestFirstInterfaceIPv4SkipsLoopback(t *testing.T) {
	addrs := func() ([]net.Addr, error) {
		return []net.Addr{
			&net.IPNet{IP: net.IPv4(127, 0, 0, 1), Mask: net.CIDRMask(8, 32)},
			&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
			&net.IPNet{IP: net.IPv4(192, 168, 1, 20), Mask: net.CIDRMask(24, 32)},
		}, nil
	}
	got, err := firstInterfaceIPv4(addrs)
	if err != nil {
		t.Fatalf("firstInterfaceIPv4 failed: %v", err)
	}
	if got != "192.168.1.20" {
		t.Fatalf("unexpected address %q", got)
	}

	_, err = firstInterfaceIPv4(func() ([]net.Addr, error) {
		return []net.Addr{&net.IPNet{IP: net.IPv4(127, 0, 0, 1), Mask: net.CIDRMask(8, 32)}}, nil
	})
	if !errors.Is(err, ErrNoLocalAddress) {
		t.Fatalf("expected ErrNoLocalAddress, got %v", err)
	}
}

func TestLocalIdentityFallsBackToHostname(t *testing.T) {
	identity := LocalIdentity("  ", 7000)
	if identity.Name == "" {
		t.Fatalf("expected hostname fallback")
	}
	if identity.Port != 7000 {
		t.Fatalf("unexpected port %d", identity.Port)
	}
	if got := LocalIdentity("Desk", 7000).Name; got != "Desk" {
		t.Fatalf("expected configured name, got %q", got)
	}
}

func assertContainsTXT(t *testing.T, txt []string, want string) {
	t.Helper()
	for _, value := range txt {
		if value == want {
			return
		}
	}
	t.Fatalf("missing TXT record %q in %v", want, txt)
}

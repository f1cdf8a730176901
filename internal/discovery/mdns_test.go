package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantSerial string
		wantIP     string
		wantPort   int
	}{
		{
			name: "valid controller with IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "hidromotic20417.local.",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.74")},
				Text:     []string{"path=/"},
			},
			wantNil:    false,
			wantSerial: "20417",
			wantIP:     "192.168.1.74",
			wantPort:   80,
		},
		{
			name: "valid controller without trailing dot",
			entry: &zeroconf.ServiceEntry{
				HostName: "hidromotic31.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantNil:    false,
			wantSerial: "31",
			wantIP:     "10.0.0.5",
			wantPort:   80,
		},
		{
			name: "no port specified defaults to 80",
			entry: &zeroconf.ServiceEntry{
				HostName: "hidromotic7.local",
				Port:     0,
				AddrIPv4: []net.IP{net.ParseIP("172.16.0.1")},
			},
			wantNil:    false,
			wantSerial: "7",
			wantIP:     "172.16.0.1",
			wantPort:   80,
		},
		{
			name: "unrelated device on the same service type",
			entry: &zeroconf.ServiceEntry{
				HostName: "printer.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "empty hostname",
			entry: &zeroconf.ServiceEntry{
				HostName: "",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name: "no IP address",
			entry: &zeroconf.ServiceEntry{
				HostName: "hidromotic20417.local",
				Port:     80,
			},
			wantNil: true,
		},
		{
			name: "IPv6 only controller",
			entry: &zeroconf.ServiceEntry{
				HostName: "hidromotic42.local",
				Port:     80,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantNil:    false,
			wantSerial: "42",
			wantIP:     "fe80::1",
			wantPort:   80,
		},
		{
			name: "both IPv4 and IPv6 prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "hidromotic42.local",
				Port:     80,
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
			},
			wantNil:    false,
			wantSerial: "42",
			wantIP:     "192.168.1.50",
			wantPort:   80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if c != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", c)
				}
				return
			}

			if c == nil {
				t.Fatal("parseServiceEntry() = nil, want controller")
			}
			if c.Serial != tt.wantSerial {
				t.Errorf("Serial = %v, want %v", c.Serial, tt.wantSerial)
			}
			if c.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", c.IP, tt.wantIP)
			}
			if c.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", c.Port, tt.wantPort)
			}
			if c.Hostname != tt.entry.HostName {
				t.Errorf("Hostname = %v, want %v", c.Hostname, tt.entry.HostName)
			}
			if time.Since(c.DiscoveredAt) > time.Second {
				t.Errorf("DiscoveredAt is not recent: %v", c.DiscoveredAt)
			}
		})
	}
}

func TestScanner_parseServiceEntry_Metadata(t *testing.T) {
	scanner := NewScanner()

	entry := &zeroconf.ServiceEntry{
		HostName: "hidromotic20417.local",
		Port:     80,
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.74")},
		Text:     []string{"path=/", "fw=352", "flag"},
	}

	c := scanner.parseServiceEntry(entry)
	if c == nil {
		t.Fatal("parseServiceEntry() = nil, want controller")
	}

	expected := map[string]string{
		"path": "/",
		"fw":   "352",
		"flag": "", // key without value
	}
	if len(c.Metadata) != len(expected) {
		t.Errorf("Metadata has %d entries, want %d", len(c.Metadata), len(expected))
	}
	for key, want := range expected {
		if got, ok := c.Metadata[key]; !ok {
			t.Errorf("Metadata missing key %q", key)
		} else if got != want {
			t.Errorf("Metadata[%q] = %q, want %q", key, got, want)
		}
	}
	if got := c.GetMetadata("missing"); got != "" {
		t.Errorf("GetMetadata(missing) = %q, want empty", got)
	}
}

func TestSerialPattern(t *testing.T) {
	tests := []struct {
		hostname    string
		shouldMatch bool
		serial      string
	}{
		{"hidromotic20417.local", true, "20417"},
		{"hidromotic20417.local.", true, "20417"},
		{"hidromotic1.local", true, "1"},
		{"Hidromotic20417.local", false, ""}, // uppercase prefix
		{"hidromotic.local", false, ""},      // no serial
		{"hidromoticABC.local", false, ""},   // non-numeric serial
		{"somedevice.local", false, ""},      // wrong prefix
		{"hidromotic20417", false, ""},       // missing .local
		{"", false, ""},                      // empty
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			matches := serialPattern.FindStringSubmatch(tt.hostname)

			if tt.shouldMatch {
				if len(matches) < 2 {
					t.Fatalf("serialPattern did not match %q", tt.hostname)
				}
				if matches[1] != tt.serial {
					t.Errorf("serial = %q, want %q", matches[1], tt.serial)
				}
			} else if matches != nil {
				t.Errorf("serialPattern matched %q, want no match", tt.hostname)
			}
		})
	}
}

func TestController_String(t *testing.T) {
	c := &Controller{
		Serial:   "20417",
		Hostname: "hidromotic20417.local",
		IP:       "192.168.1.74",
		Port:     80,
	}

	expected := "Hidromotic 20417 (hidromotic20417.local) at 192.168.1.74:80"
	if c.String() != expected {
		t.Errorf("Controller.String() = %v, want %v", c.String(), expected)
	}
}

func TestController_WebSocketURL(t *testing.T) {
	c := &Controller{IP: "10.0.0.5", Port: 8080}
	if got := c.WebSocketURL(); got != "ws://10.0.0.5:8080/" {
		t.Errorf("WebSocketURL() = %v, want ws://10.0.0.5:8080/", got)
	}
}

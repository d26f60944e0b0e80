package evg230

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigureValidations(t *testing.T) {
	cases := []struct {
		name       string
		deviceName string
		ip         string
		port       int
		freq       uint64
		wantErr    error
	}{
		{"empty name", "", "10.0.0.1", 2000, 1, ErrInvalidArgument},
		{"name too long", strings.Repeat("a", 30), "10.0.0.1", 2000, 1, ErrInvalidArgument},
		{"name at max length ok", strings.Repeat("a", 29), "10.0.0.1", 2000, 1, nil},
		{"unparseable ip", "dev0", "not-an-ip", 2000, 1, ErrInvalidArgument},
		{"ipv6 rejected", "dev0", "::1", 2000, 1, ErrInvalidArgument},
		{"port zero", "dev0", "10.0.0.1", 0, 1, ErrInvalidArgument},
		{"port too big", "dev0", "10.0.0.1", 65536, 1, ErrInvalidArgument},
		{"port at max ok", "dev0", "10.0.0.1", 65535, 1, nil},
		{"zero frequency", "dev0", "10.0.0.1", 2000, 0, ErrInvalidArgument},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Configure(c.deviceName, c.ip, c.port, c.freq)
			if c.wantErr == nil {
				if err != nil {
					t.Fatalf("Configure(%q, %q, %d, %d) = %v, want nil", c.deviceName, c.ip, c.port, c.freq, err)
				}
				return
			}
			if !errors.Is(err, c.wantErr) {
				t.Fatalf("Configure(%q, %q, %d, %d) = %v, want %v", c.deviceName, c.ip, c.port, c.freq, err, c.wantErr)
			}
		})
	}
}

func TestConfigureRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Configure("dev0", "10.0.0.1", 2000, 1); err != nil {
		t.Fatalf("first Configure: %v", err)
	}
	if err := r.Configure("dev0", "10.0.0.2", 2001, 2); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("duplicate Configure err = %v, want ErrInvalidArgument", err)
	}
}

func TestConfigureEnforcesMaxDevices(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxDevices; i++ {
		name := fmt.Sprintf("dev%d", i)
		if err := r.Configure(name, "10.0.0.1", 2000+i, 1); err != nil {
			t.Fatalf("Configure(%s): %v", name, err)
		}
	}
	if err := r.Configure("overflow", "10.0.0.1", 9999, 1); !errors.Is(err, ErrConfigFull) {
		t.Fatalf("err = %v, want ErrConfigFull", err)
	}
}

func TestConfigureRevisionDefaultsAndOverride(t *testing.T) {
	r := NewRegistry()
	if err := r.Configure("dual", "10.0.0.1", 2000, 1); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := r.ConfigureRevision("single", "10.0.0.2", 2001, 1, RevisionSingleSequencer); err != nil {
		t.Fatalf("ConfigureRevision: %v", err)
	}
	if r.devices[0].revision != RevisionDualSequencer {
		t.Errorf("Configure's default revision = %v, want RevisionDualSequencer", r.devices[0].revision)
	}
	if r.devices[1].revision != RevisionSingleSequencer {
		t.Errorf("ConfigureRevision's revision = %v, want RevisionSingleSequencer", r.devices[1].revision)
	}
}

// Property 10: open("") / open("<30+ chars>") / open("missing") all return
// ErrUnknownDevice.
func TestOpenProperty10(t *testing.T) {
	r := NewRegistry()
	if err := r.Configure("dev0", "10.0.0.1", 2000, 1); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	for _, name := range []string{"", strings.Repeat("a", 30), "missing"} {
		if _, err := r.Open(name); !errors.Is(err, ErrUnknownDevice) {
			t.Errorf("Open(%q) err = %v, want ErrUnknownDevice", name, err)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	r := NewRegistry()
	if err := r.Configure("dev0", "10.0.0.1", 2000, 1); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	h1, err := r.Open("dev0")
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	h2, err := r.Open("dev0")
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if h1 != h2 {
		t.Errorf("Open returned distinct handles for the same name: %+v != %+v", h1, h2)
	}
}

func TestHandleResolveRejectsStaleIndex(t *testing.T) {
	r := NewRegistry()
	if err := r.Configure("dev0", "10.0.0.1", 2000, 1); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	h := Handle{reg: r, idx: 5}
	if _, err := h.IsEnabled(); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("stale handle err = %v, want ErrUnknownDevice", err)
	}
}

func TestZeroValueHandleIsUnusable(t *testing.T) {
	var h Handle
	if _, err := h.IsEnabled(); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("zero-value handle err = %v, want ErrUnknownDevice", err)
	}
}

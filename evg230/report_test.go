package evg230

import (
	"strings"
	"testing"
)

func TestReportListsDevicesInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	if err := r.Configure("evg0", "192.168.1.50", 2000, 125_000_000); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := r.Configure("evg1", "192.168.1.51", 2001, 125_000_000); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	var buf strings.Builder
	if err := r.Report(&buf); err != nil {
		t.Fatalf("Report: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Report produced %d lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "evg0") || !strings.Contains(lines[0], "192.168.1.50") || !strings.Contains(lines[0], "2000") {
		t.Errorf("line 1 = %q, want evg0/192.168.1.50/2000", lines[0])
	}
	if !strings.Contains(lines[1], "evg1") || !strings.Contains(lines[1], "192.168.1.51") || !strings.Contains(lines[1], "2001") {
		t.Errorf("line 2 = %q, want evg1/192.168.1.51/2001", lines[1])
	}
}

func TestReportOnEmptyRegistryWritesNothing(t *testing.T) {
	r := NewRegistry()
	var buf strings.Builder
	if err := r.Report(&buf); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Report() on an empty registry wrote %q, want empty", buf.String())
	}
}

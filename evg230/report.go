package evg230

import (
	"fmt"
	"io"
)

// Report writes a textual listing of every configured device's name,
// resolved IP, and port (§6 "Exit/error reporting"), in registration
// order. This mirrors the teacher's plain fmt.Fprintf-to-writer reporting
// habit (core_engine/virtual_machine.go's debug prints,
// core_engine/devices/ne2000.go's constructor banner) rather than
// returning a structured value — the consumer named in §6 is a log line
// or a CLI, not another program.
func (r *Registry) Report(w io.Writer) error {
	r.mu.Lock()
	devs := make([]*device, r.count)
	copy(devs, r.devices[:r.count])
	r.mu.Unlock()

	for _, d := range devs {
		if _, err := fmt.Fprintf(w, "%-29s %-15s %d\n", d.name, d.ip, d.port); err != nil {
			return err
		}
	}
	return nil
}

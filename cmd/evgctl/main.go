// Command evgctl is a minimal front end over the evg230 binding surface
// (§6): configure one device from flags, initialize it, print the
// registry report, and exercise two read-only operations. It stands in for
// the shell/registration surface spec.md explicitly puts out of scope for
// the driver core (§1) — this is glue, not part of the core.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"example.com/evg230/evg230"
)

func main() {
	name := flag.String("name", "evg0", "device name")
	ip := flag.String("ip", "192.168.1.50", "device IPv4 address")
	port := flag.Int("port", 2000, "device UDP port")
	frequency := flag.Uint64("frequency-hz", 125_000_000, "reference frequency in Hz")
	reset := flag.Bool("reset", false, "perform the card-reset sequence during init")
	flag.Parse()

	reg := evg230.NewRegistry()
	if err := reg.Configure(*name, *ip, *port, *frequency); err != nil {
		log.Fatalf("configure %s: %v", *name, err)
	}

	if errs := reg.Init(*reset); len(errs) > 0 {
		for _, err := range errs {
			log.Printf("init: %v", err)
		}
		os.Exit(1)
	}

	if err := reg.Report(os.Stdout); err != nil {
		log.Fatalf("report: %v", err)
	}

	h, err := reg.Open(*name)
	if err != nil {
		log.Fatalf("open %s: %v", *name, err)
	}
	defer h.Shutdown()

	enabled, err := h.IsEnabled()
	if err != nil {
		log.Fatalf("is_enabled: %v", err)
	}
	fmt.Printf("%s enabled: %v\n", *name, enabled)

	version, err := h.GetFirmwareVersion()
	if err != nil {
		log.Fatalf("get_firmware_version: %v", err)
	}
	fmt.Printf("%s firmware: 0x%04x\n", *name, version)
}

package transport

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
)

// Ports lists the serial ports present on this machine, sorted by name.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("transport: list ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

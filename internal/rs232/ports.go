package rs232

import (
	"fmt"
	"sort"

	"go.bug.st/serial"
)

// getPortsList enumerates serial devices. Tests replace it.
var getPortsList = serial.GetPortsList

// Ports returns the serial device paths present on this host, sorted.
func Ports() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, fmt.Errorf("rs232: listing ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

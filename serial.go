package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"

	"github.com/capgrid/captrack/internal/monitoring"
)

// SensorPort wraps a serial connection to the sensor hub. Reads are raw byte
// chunks handed to the engine; line reassembly happens inside the engine so
// mid-line opens and split reads are handled in one place.
type SensorPort struct {
	serial.Port
	name string
}

// OpenSensorPort opens the named port at the given baud rate, 8N1.
func OpenSensorPort(name string, baud int) (*SensorPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &SensorPort{Port: port, name: name}, nil
}

// Name returns the system path of the port.
func (p *SensorPort) Name() string { return p.name }

// Monitor reads chunks from the port and hands each to sink until the
// context is cancelled or the port errors. It closes the port on return.
func (p *SensorPort) Monitor(ctx context.Context, sink func([]byte)) error {
	defer p.Close()

	buf := make([]byte, 512)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := p.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", p.name, err)
		}
		if n == 0 {
			continue
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		sink(chunk)
	}
}

// ScanPorts lists serial ports matching the given name prefix, sorted.
// An empty prefix matches everything.
func ScanPorts(prefix string) ([]string, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	var out []string
	for _, name := range names {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)

	for i, name := range out {
		monitoring.Logf("device %d: %s", i, name)
	}
	return out, nil
}

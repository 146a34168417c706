package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"
)

// MockSerialPort is a mock implementation of serial.Port for testing.
type MockSerialPort struct {
	mu       sync.Mutex
	readData []byte
	readErr  error
	closed   bool
}

func (m *MockSerialPort) Break(time.Duration) error                            { return nil }
func (m *MockSerialPort) Drain() error                                         { return nil }
func (m *MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) { return nil, nil }
func (m *MockSerialPort) ResetInputBuffer() error                              { return nil }
func (m *MockSerialPort) ResetOutputBuffer() error                             { return nil }
func (m *MockSerialPort) SetDTR(dtr bool) error                                { return nil }
func (m *MockSerialPort) SetMode(mode *serial.Mode) error                      { return nil }
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error                 { return nil }
func (m *MockSerialPort) SetRTS(rts bool) error                                { return nil }
func (m *MockSerialPort) Write(p []byte) (int, error)                          { return len(p), nil }

func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()

	if len(m.readData) == 0 {
		err := m.readErr
		m.mu.Unlock()
		if err != nil {
			return 0, err
		}
		// Block briefly as a real idle port would.
		time.Sleep(5 * time.Millisecond)
		return 0, nil
	}

	// Deliver in small chunks to exercise reassembly downstream.
	n := 3
	if n > len(m.readData) {
		n = len(m.readData)
	}
	n = copy(p, m.readData[:n])
	m.readData = m.readData[n:]
	m.mu.Unlock()
	return n, nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestMonitorDeliversChunksInOrder(t *testing.T) {
	mock := &MockSerialPort{
		readData: []byte("1,2,3\n4,5,6\n"),
		readErr:  errors.New("port gone"),
	}
	port := &SensorPort{Port: mock, name: "mock"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []byte
	err := port.Monitor(ctx, func(chunk []byte) {
		mu.Lock()
		got = append(got, chunk...)
		mu.Unlock()
	})

	if err == nil {
		t.Fatal("expected the injected read error")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(got) != "1,2,3\n4,5,6\n" {
		t.Errorf("reassembled stream = %q", got)
	}
	if !mock.closed {
		t.Error("Monitor must close the port on return")
	}
}

func TestMonitorStopsOnCancel(t *testing.T) {
	mock := &MockSerialPort{}
	port := &SensorPort{Port: mock, name: "mock"}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- port.Monitor(ctx, func([]byte) {})
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Monitor returned %v on cancel", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Monitor did not stop on context cancellation")
	}
}

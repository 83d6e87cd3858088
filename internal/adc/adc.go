// Package adc reads the photodiode through a Linux IIO channel.
package adc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the raw value file of the first IIO ADC channel.
const DefaultPath = "/sys/bus/iio/devices/iio:device0/in_voltage0_raw"

// Reader reads raw ADC counts.
type Reader interface {
	ReadRaw() (int, error)
}

// IIOReader reads a sysfs IIO raw value file.
type IIOReader struct {
	path string
}

// NewIIOReader creates a reader for the given sysfs path.
func NewIIOReader(path string) *IIOReader {
	return &IIOReader{path: path}
}

// ReadRaw returns the current raw count of the channel.
func (r *IIOReader) ReadRaw() (int, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return 0, fmt.Errorf("read adc: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse adc value %q: %w", strings.TrimSpace(string(data)), err)
	}
	return v, nil
}

// FakeReader is a test double that returns scripted raw values.
type FakeReader struct {
	// Values contains scripted raw readings. Each call consumes the next one;
	// once exhausted the last value repeats.
	Values []int

	// ReadError, if set, will be returned by ReadRaw.
	ReadError error

	// Reads counts calls to ReadRaw.
	Reads int

	index int
}

// NewFakeReader creates a FakeReader with the given values.
func NewFakeReader(values ...int) *FakeReader {
	return &FakeReader{Values: values}
}

// ReadRaw returns the next scripted value.
func (f *FakeReader) ReadRaw() (int, error) {
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Values) == 0 {
		return 0, fmt.Errorf("no values configured")
	}

	v := f.Values[f.index]
	if f.index < len(f.Values)-1 {
		f.index++
	}
	return v, nil
}

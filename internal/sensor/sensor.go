// Package sensor provides the readings published by the scheduling loop.
//
// Every sensor returns a single float64. Hardware access is kept to plain
// file reads so the same code runs against sysfs, procfs or a test file.
package sensor

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/nerrad567/feedlink/internal/infrastructure/config"
)

var (
	// ErrUnsupported is returned by New for unknown sensor types.
	ErrUnsupported = errors.New("sensor: unsupported type")

	// ErrRead is returned when a sensor cannot produce a reading.
	ErrRead = errors.New("sensor: read failed")
)

// Sensor produces one numeric reading per call.
type Sensor interface {
	Read() (float64, error)
}

// New builds the sensor described by cfg.
func New(cfg config.SensorConfig) (Sensor, error) {
	switch cfg.Type {
	case "heap":
		return Heap{}, nil
	case "file":
		return NewFile(cfg.Path, cfg.Scale), nil
	case "mcp9808":
		return MCP9808{Path: cfg.Path}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, cfg.Type)
	}
}

// Heap reports heap bytes the Go runtime holds but is not using.
type Heap struct{}

// Read implements Sensor.
func (Heap) Read() (float64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.HeapSys - ms.HeapInuse), nil
}

// File reads a decimal value from a file such as
// /sys/class/thermal/thermal_zone0/temp and multiplies it by Scale.
type File struct {
	Path  string
	Scale float64
}

// NewFile creates a File sensor. A zero scale means 1.
func NewFile(path string, scale float64) File {
	if scale == 0 {
		scale = 1
	}
	return File{Path: path, Scale: scale}
}

// Read implements Sensor.
func (f File) Read() (float64, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrRead, f.Path, err)
	}
	return v * f.Scale, nil
}

// MCP9808 decodes the ambient temperature register (0x05) of an MCP9808
// from a file holding the two raw register bytes, most significant first.
type MCP9808 struct {
	Path string
}

// Read implements Sensor.
func (m MCP9808) Read() (float64, error) {
	data, err := os.ReadFile(m.Path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("%w: %s: need 2 bytes, got %d", ErrRead, m.Path, len(data))
	}
	return DecodeMCP9808(data[0], data[1]), nil
}

// DecodeMCP9808 converts the ambient temperature register to °C.
// Bits 0-11 are the magnitude in 1/16 °C and bit 12 is the sign.
func DecodeMCP9808(hi, lo byte) float64 {
	raw := uint16(hi)<<8 | uint16(lo)
	temp := float64(raw&0x0FFF) / 16.0
	if raw&0x1000 != 0 {
		temp -= 256
	}
	return temp
}

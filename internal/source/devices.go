// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// DefaultDeviceID selects the system default input device.
const DefaultDeviceID = -1

// Device represents an audio device.
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowLatencyMs      float64
	HighLatencyMs     float64
}

// Kind describes the directions the device supports.
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return "Unknown"
	}
}

// paDevicesFunc is swapped in tests.
var paDevicesFunc = portaudio.Devices

// InitializeAudio sets up the PortAudio subsystem. Pair it with
// TerminateAudio.
func InitializeAudio() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// TerminateAudio shuts the PortAudio subsystem down.
func TerminateAudio() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// HostDevices returns every device PortAudio reports. PortAudio must be
// initialized.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowLatencyMs:      info.DefaultLowInputLatency.Seconds() * 1000,
			HighLatencyMs:     info.DefaultHighInputLatency.Seconds() * 1000,
		}
	}
	return devices, nil
}

// ListDevices initializes PortAudio, collects the device list and shuts it
// down again.
func ListDevices() ([]Device, error) {
	if err := InitializeAudio(); err != nil {
		return nil, err
	}
	defer TerminateAudio()
	return HostDevices()
}

// inputDevice resolves deviceID, DefaultDeviceID meaning the system default.
func inputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == DefaultDeviceID {
		return portaudio.DefaultInputDevice()
	}
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}
	if deviceID < 0 || deviceID >= len(infos) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if infos[deviceID].MaxInputChannels == 0 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", deviceID, infos[deviceID].Name)
	}
	return infos[deviceID], nil
}

// PrintDevices writes a human readable device table to w.
func PrintDevices(w io.Writer, devices []Device) {
	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")
	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s (%s)\n", d.ID, d.Name, d.Kind())
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", d.MaxInputChannels, d.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n\n", d.LowLatencyMs, d.HighLatencyMs)
	}
}

// ABOUTME: Low-pass filter backed by a device filter object
// ABOUTME: Exposes gain and high-frequency gain and binds to a source's direct path
package filter

import (
	"fmt"

	"github.com/Resonate-Protocol/syncsource-go/pkg/device"
)

// LowPass attenuates high frequencies on the sources it is bound to
type LowPass struct {
	dev    device.Device
	handle device.FilterHandle
	table  *Table
}

// NewLowPass allocates a low-pass filter on dev. Sources attach it through table (nil means
// Default), which Close uses to detach it everywhere before the device object goes away.
func NewLowPass(dev device.Device, table *Table) (*LowPass, error) {
	if table == nil {
		table = Default
	}
	h, err := dev.GenFilter()
	if err != nil {
		return nil, fmt.Errorf("failed to create low-pass filter: %w", err)
	}
	return &LowPass{dev: dev, handle: h, table: table}, nil
}

// Handle returns the device filter handle
func (f *LowPass) Handle() device.FilterHandle {
	return f.handle
}

// SetGain sets the overall gain (0..1)
func (f *LowPass) SetGain(gain float32) {
	f.dev.SetFilterFloat(f.handle, device.ParamLowpassGain, gain)
}

// Gain returns the overall gain
func (f *LowPass) Gain() float32 {
	return f.dev.FilterFloat(f.handle, device.ParamLowpassGain)
}

// SetHighFrequencyGain sets the high-frequency gain (0..1)
func (f *LowPass) SetHighFrequencyGain(gain float32) {
	f.dev.SetFilterFloat(f.handle, device.ParamLowpassGainHF, gain)
}

// HighFrequencyGain returns the high-frequency gain
func (f *LowPass) HighFrequencyGain() float32 {
	return f.dev.FilterFloat(f.handle, device.ParamLowpassGainHF)
}

// Bind routes the source's direct path through this filter
func (f *LowPass) Bind(h device.Handle) {
	f.dev.SetDirectFilter(h, f.handle)
}

// Unbind clears the source's direct filter
func (f *LowPass) Unbind(h device.Handle) {
	f.dev.SetDirectFilter(h, 0)
}

// Close detaches the filter from every source and frees the device object
func (f *LowPass) Close() error {
	if f.handle == 0 {
		return nil
	}
	f.table.Release(f)
	f.dev.DeleteFilter(f.handle)
	f.handle = 0
	return nil
}

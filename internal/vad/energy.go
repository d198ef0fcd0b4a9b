// Package vad infers speech presence from audio energy level.
package vad

import (
	"fmt"
	"math"
)

// RMS computes root-mean-square energy over one analysis window of samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var energy float64
	for _, sample := range samples {
		energy += float64(sample) * float64(sample)
	}
	return math.Sqrt(energy / float64(len(samples)))
}

// Meter compares per-window energy against a configured activity threshold.
type Meter struct {
	threshold float64
}

// NewMeter validates and builds an energy meter.
func NewMeter(threshold float64) (*Meter, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("activity threshold must be in (0, 1), got %f", threshold)
	}
	return &Meter{threshold: threshold}, nil
}

// Threshold returns the configured activity threshold.
func (m *Meter) Threshold() float64 {
	return m.threshold
}

// Sample reports window energy and whether it crosses the activity threshold.
func (m *Meter) Sample(window []float32) (energy float64, active bool) {
	energy = RMS(window)
	return energy, energy >= m.threshold
}

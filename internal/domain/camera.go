// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const MaxDeviceIDLen = 64

var (
	ErrDeviceIDEmpty   = errors.New("device id empty")
	ErrDeviceIDTooLong = errors.New("device id too long")
	ErrDeviceIDInvalid = errors.New("device id contains topic separators")
)

// DeviceID is the stable key of a camera; it is embedded in broker topics.
type DeviceID string

type Camera struct {
	DeviceID DeviceID `json:"deviceId"`
	Name     string   `json:"cameraName"`
}

// NewCamera is a tiny helper to avoid ad-hoc struct literals in adapters.
// The name falls back to the device id.
func NewCamera(id, name string) (Camera, error) {
	if err := DeviceID(id).Validate(); err != nil {
		return Camera{}, err
	}
	if name == "" {
		name = id
	}
	return Camera{DeviceID: DeviceID(id), Name: name}, nil
}

func (id DeviceID) Validate() error {
	if len(id) == 0 {
		return ErrDeviceIDEmpty
	}
	if len(id) > MaxDeviceIDLen {
		return ErrDeviceIDTooLong
	}
	if strings.ContainsAny(string(id), "/+#") {
		return ErrDeviceIDInvalid
	}
	return nil
}

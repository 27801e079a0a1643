package models

import "fmt"

// Device is the identity of the paired phone for the current session.
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	Wallpaper string `json:"wallpaper,omitempty"`
}

// CompositeKey returns the name-ip key used to namespace per-device assets.
func (d Device) CompositeKey() string {
	return CompositeKey(d.Name, d.IPAddress)
}

// CompositeKey joins a device name and IP the way wallpaper files are named.
func CompositeKey(name, ipAddress string) string {
	return fmt.Sprintf("%s-%s", name, ipAddress)
}

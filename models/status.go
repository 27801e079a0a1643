package models

// Battery is the peer battery snapshot.
type Battery struct {
	Level      int  `json:"level"`
	IsCharging bool `json:"is_charging"`
}

// Music is the peer media session snapshot.
type Music struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	IsPlaying bool   `json:"is_playing"`
	Volume    int    `json:"volume"`
	IsMuted   bool   `json:"is_muted"`
}

// DeviceStatus is replaced wholesale on every status message.
type DeviceStatus struct {
	Battery  Battery `json:"battery"`
	Music    Music   `json:"music"`
	IsPaired bool    `json:"is_paired"`
}

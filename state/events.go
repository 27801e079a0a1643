package state

import (
	"airsync/config"
	"airsync/models"
)

// EventKind identifies which part of the store changed.
type EventKind int

const (
	DeviceChanged EventKind = iota + 1
	StatusChanged
	NotificationsChanged
	AppIconsChanged
	WallpapersChanged
	PreferencesChanged
	LicenseChanged
	ServerStatusChanged
	ADBChanged
)

func (k EventKind) String() string {
	switch k {
	case DeviceChanged:
		return "device_changed"
	case StatusChanged:
		return "status_changed"
	case NotificationsChanged:
		return "notifications_changed"
	case AppIconsChanged:
		return "app_icons_changed"
	case WallpapersChanged:
		return "wallpapers_changed"
	case PreferencesChanged:
		return "preferences_changed"
	case LicenseChanged:
		return "license_changed"
	case ServerStatusChanged:
		return "server_status_changed"
	case ADBChanged:
		return "adb_changed"
	default:
		return "unknown"
	}
}

// Event is a snapshot delivered to observers after a mutation. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	Device        *models.Device
	Status        *models.DeviceStatus
	Notifications []models.Notification
	Added         *models.Notification
	RemovedNID    string
	Preferences   *config.Preferences
	License       *models.LicenseDetails
	IsPlus        bool
	ServerStatus  string
	ADBResult     string
	ADBConnected  bool
}

// Observer receives events synchronously on the mutating goroutine.
// Observers may read the store but must not block.
type Observer func(Event)

type subscription struct {
	fn    Observer
	kinds map[EventKind]bool
}

func (s subscription) wants(kind EventKind) bool {
	return len(s.kinds) == 0 || s.kinds[kind]
}

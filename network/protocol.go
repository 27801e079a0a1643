package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	// MaxMessageSize is the largest inbound message the transport accepts (5 MiB).
	MaxMessageSize = 5 * 1024 * 1024
	// DefaultWriteTimeout bounds each outbound write.
	DefaultWriteTimeout = 10 * time.Second
	// DefaultPongTimeout evicts a peer that has been silent this long.
	DefaultPongTimeout = 60 * time.Second
	// DefaultPingInterval must stay below DefaultPongTimeout.
	DefaultPingInterval = (DefaultPongTimeout * 9) / 10
	// DefaultOutboundQueueSize buffers outbound messages between callers and the sender.
	DefaultOutboundQueueSize = 256
	// DefaultIconQueueSize bounds pending appIcons batches.
	DefaultIconQueueSize = 32
)

// Inbound message types.
const (
	TypeDevice          = "device"
	TypeNotification    = "notification"
	TypeStatus          = "status"
	TypeAppIcons        = "appIcons"
	TypeClipboardUpdate = "clipboardUpdate"
	TypeWallpaperImage  = "wallpaperImage"
)

// Outbound message types.
const (
	TypeDisconnectRequest   = "disconnectRequest"
	TypeDismissNotification = "dismissNotification"
	TypeMediaControl        = "mediaControl"
	TypeVolumeControl       = "volumeControl"
)

var (
	// ErrInvalidMessageType indicates the type field is missing.
	ErrInvalidMessageType = errors.New("network: invalid message type")
	// ErrUnknownMessageType indicates a type this side does not handle.
	ErrUnknownMessageType = errors.New("network: unknown message type")
	// ErrMissingData indicates the data field is absent or not an object.
	ErrMissingData = errors.New("network: message data must be an object")
)

// Envelope is the {type, data} wire wrapper.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound is implemented by every decoded inbound payload.
type Inbound interface {
	MessageType() string
}

// DevicePayload announces the phone identity.
type DevicePayload struct {
	Name      string `json:"name"`
	IPAddress string `json:"ipAddress"`
	Port      int    `json:"port"`
	Wallpaper string `json:"wallpaper,omitempty"`
}

// NotificationPayload is one phone notification.
type NotificationPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	App     string `json:"app"`
	ID      string `json:"id"`
	Package string `json:"package"`
}

// BatteryPayload is the battery part of a status message.
type BatteryPayload struct {
	Level      int  `json:"level"`
	IsCharging bool `json:"isCharging"`
}

// MusicPayload is the media part of a status message.
type MusicPayload struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	IsPlaying bool   `json:"isPlaying"`
	Volume    int    `json:"volume"`
	IsMuted   bool   `json:"isMuted"`
}

// StatusPayload is a full device status snapshot.
type StatusPayload struct {
	Battery  BatteryPayload `json:"battery"`
	Music    MusicPayload   `json:"music"`
	IsPaired bool           `json:"isPaired"`
}

// AppIconsPayload maps package names to base64 images. Entries whose value
// is not a string are left out of Icons and listed in Skipped.
type AppIconsPayload struct {
	Icons   map[string]string
	Skipped []string
}

// UnmarshalJSON decodes each icon on its own so one bad entry does not
// reject the batch.
func (p *AppIconsPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Icons = make(map[string]string, len(raw))
	p.Skipped = nil
	for name, value := range raw {
		var encoded string
		if err := json.Unmarshal(value, &encoded); err != nil {
			p.Skipped = append(p.Skipped, name)
			continue
		}
		p.Icons[name] = encoded
	}
	slices.Sort(p.Skipped)
	return nil
}

// ClipboardPayload carries clipboard text in either direction.
type ClipboardPayload struct {
	Text string `json:"text"`
}

// WallpaperPayload carries a base64 wallpaper image.
type WallpaperPayload struct {
	Wallpaper string `json:"wallpaper"`
}

func (DevicePayload) MessageType() string       { return TypeDevice }
func (NotificationPayload) MessageType() string { return TypeNotification }
func (StatusPayload) MessageType() string       { return TypeStatus }
func (AppIconsPayload) MessageType() string     { return TypeAppIcons }
func (ClipboardPayload) MessageType() string    { return TypeClipboardUpdate }
func (WallpaperPayload) MessageType() string    { return TypeWallpaperImage }

// Outbound is an envelope built on this side.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// DismissData identifies a notification to dismiss on the phone.
type DismissData struct {
	ID string `json:"id"`
}

// ActionData carries a media action.
type ActionData struct {
	Action string `json:"action"`
}

// VolumeData carries a volume action and optional absolute level.
type VolumeData struct {
	Action string `json:"action"`
	Volume *int   `json:"volume,omitempty"`
}

// DisconnectRequest asks the phone to end the session.
func DisconnectRequest() Outbound {
	return Outbound{Type: TypeDisconnectRequest, Data: struct{}{}}
}

// DismissNotification asks the phone to dismiss a notification.
func DismissNotification(id string) Outbound {
	return Outbound{Type: TypeDismissNotification, Data: DismissData{ID: id}}
}

// MediaControl sends a playback action.
func MediaControl(action string) Outbound {
	return Outbound{Type: TypeMediaControl, Data: ActionData{Action: action}}
}

// VolumeControl sends a volume action; volume is omitted when nil.
func VolumeControl(action string, volume *int) Outbound {
	return Outbound{Type: TypeVolumeControl, Data: VolumeData{Action: action, Volume: volume}}
}

// ClipboardUpdate sends clipboard text to the phone.
func ClipboardUpdate(text string) Outbound {
	return Outbound{Type: TypeClipboardUpdate, Data: ClipboardPayload{Text: text}}
}

// EncodeJSON marshals a protocol message to JSON.
func EncodeJSON(message any) ([]byte, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("marshal protocol message: %w", err)
	}
	return payload, nil
}

// DecodeEnvelope parses raw UTF-8 JSON into an envelope.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Type == "" {
		return Envelope{}, ErrInvalidMessageType
	}
	return envelope, nil
}

// DecodeInbound turns an envelope into its typed payload.
func DecodeInbound(envelope Envelope) (Inbound, error) {
	data := bytes.TrimSpace(envelope.Data)

	var target Inbound
	switch envelope.Type {
	case TypeDevice:
		target = &DevicePayload{}
	case TypeNotification:
		target = &NotificationPayload{}
	case TypeStatus:
		target = &StatusPayload{}
	case TypeAppIcons:
		target = &AppIconsPayload{}
	case TypeClipboardUpdate:
		target = &ClipboardPayload{}
	case TypeWallpaperImage:
		target = &WallpaperPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
	}

	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: %s", ErrMissingData, envelope.Type)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", envelope.Type, err)
	}

	switch msg := target.(type) {
	case *DevicePayload:
		return *msg, nil
	case *NotificationPayload:
		return *msg, nil
	case *StatusPayload:
		return *msg, nil
	case *AppIconsPayload:
		return *msg, nil
	case *ClipboardPayload:
		return *msg, nil
	case *WallpaperPayload:
		return *msg, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
}

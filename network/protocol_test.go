package network

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeInboundDevice(t *testing.T) {
	envelope, err := DecodeEnvelope([]byte(`{"type":"device","data":{"name":"Pixel","ipAddress":"10.0.0.2","port":6996}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	message, err := DecodeInbound(envelope)
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	device, ok := message.(DevicePayload)
	if !ok {
		t.Fatalf("expected DevicePayload, got %T", message)
	}
	if device.Name != "Pixel" || device.IPAddress != "10.0.0.2" || device.Port != 6996 {
		t.Fatalf("unexpected device payload: %+v", device)
	}
}

func TestDecodeInboundStatusAndIcons(t *testing.T) {
	raw := `{"type":"status","data":{"battery":{"level":80,"isCharging":true},"music":{"title":"Song","artist":"A","isPlaying":true,"volume":50,"isMuted":false},"isPaired":true}}`
	envelope, err := DecodeEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	message, err := DecodeInbound(envelope)
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	status := message.(StatusPayload)
	if status.Battery.Level != 80 || !status.Battery.IsCharging || status.Music.Volume != 50 || !status.IsPaired {
		t.Fatalf("unexpected status payload: %+v", status)
	}

	envelope, _ = DecodeEnvelope([]byte(`{"type":"appIcons","data":{"com.example":"AAAA"}}`))
	message, err = DecodeInbound(envelope)
	if err != nil {
		t.Fatalf("DecodeInbound appIcons failed: %v", err)
	}
	if icons := message.(AppIconsPayload); icons.Icons["com.example"] != "AAAA" {
		t.Fatalf("unexpected icons payload: %+v", icons)
	}
}

func TestDecodeInboundAppIconsSkipsNonStringEntries(t *testing.T) {
	envelope, err := DecodeEnvelope([]byte(`{"type":"appIcons","data":{"com.good":"iVBORw0KGgo=","com.bad":123,"com.obj":{"x":1}}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope failed: %v", err)
	}
	message, err := DecodeInbound(envelope)
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}
	icons := message.(AppIconsPayload)
	if len(icons.Icons) != 1 || icons.Icons["com.good"] != "iVBORw0KGgo=" {
		t.Fatalf("unexpected icons: %+v", icons.Icons)
	}
	if len(icons.Skipped) != 2 || icons.Skipped[0] != "com.bad" || icons.Skipped[1] != "com.obj" {
		t.Fatalf("unexpected skipped entries: %v", icons.Skipped)
	}
}

func TestDecodeInboundErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "unknown type", raw: `{"type":"foo","data":{}}`, want: ErrUnknownMessageType},
		{name: "missing data", raw: `{"type":"notification"}`, want: ErrMissingData},
		{name: "null data", raw: `{"type":"status","data":null}`, want: ErrMissingData},
		{name: "array data", raw: `{"type":"device","data":[1]}`, want: ErrMissingData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope, err := DecodeEnvelope([]byte(tt.raw))
			if err != nil {
				t.Fatalf("DecodeEnvelope failed: %v", err)
			}
			if _, err := DecodeInbound(envelope); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Fatalf("expected error for non-json input")
	}
	if _, err := DecodeEnvelope([]byte(`{"data":{}}`)); !errors.Is(err, ErrInvalidMessageType) {
		t.Fatalf("expected ErrInvalidMessageType, got %v", err)
	}
}

func TestOutboundShapes(t *testing.T) {
	level := 30
	tests := []struct {
		name string
		msg  Outbound
		want string
	}{
		{name: "disconnect", msg: DisconnectRequest(), want: `{"type":"disconnectRequest","data":{}}`},
		{name: "dismiss", msg: DismissNotification("n1"), want: `{"type":"dismissNotification","data":{"id":"n1"}}`},
		{name: "media", msg: MediaControl("playPause"), want: `{"type":"mediaControl","data":{"action":"playPause"}}`},
		{name: "volume without level", msg: VolumeControl("volumeUp", nil), want: `{"type":"volumeControl","data":{"action":"volumeUp"}}`},
		{name: "volume with level", msg: VolumeControl("setVolume", &level), want: `{"type":"volumeControl","data":{"action":"setVolume","volume":30}}`},
		{name: "clipboard", msg: ClipboardUpdate("hi"), want: `{"type":"clipboardUpdate","data":{"text":"hi"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := EncodeJSON(tt.msg)
			if err != nil {
				t.Fatalf("EncodeJSON failed: %v", err)
			}
			if !jsonEqual(t, payload, []byte(tt.want)) {
				t.Fatalf("got %s want %s", payload, tt.want)
			}
		})
	}
}

func jsonEqual(t *testing.T, a, b []byte) bool {
	t.Helper()
	var left, right any
	if err := json.Unmarshal(a, &left); err != nil {
		t.Fatalf("unmarshal %s: %v", a, err)
	}
	if err := json.Unmarshal(b, &right); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	l, _ := json.Marshal(left)
	r, _ := json.Marshal(right)
	return string(l) == string(r)
}

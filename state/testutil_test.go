package state

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"airsync/assets"
	"airsync/models"
)

type fakePeer struct {
	mu         sync.Mutex
	disconnect int
	dismissed  []string
	media      []string
	volume     []string
	clipboard  []string
}

func (p *fakePeer) SendDisconnectRequest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnect++
}

func (p *fakePeer) SendDismissNotification(nid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dismissed = append(p.dismissed, nid)
}

func (p *fakePeer) SendMediaControl(action string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.media = append(p.media, action)
}

func (p *fakePeer) SendVolumeControl(action string, volume *int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = append(p.volume, action)
}

func (p *fakePeer) SendClipboard(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clipboard = append(p.clipboard, text)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []NativeNotification
}

func (n *fakeNotifier) Notify(notification NativeNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

type fakeClipboard struct {
	mu   sync.Mutex
	text string
}

func (c *fakeClipboard) WriteText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	return nil
}

type fakeLicense struct {
	valid map[string]bool
}

func (l fakeLicense) Check(_ context.Context, key string) *models.LicenseDetails {
	if !l.valid[key] {
		return nil
	}
	return &models.LicenseDetails{Email: "buyer@example.com", Key: key}
}

type testStore struct {
	store     *Store
	peer      *fakePeer
	notifier  *fakeNotifier
	clipboard *fakeClipboard
	assets    *assets.Cache
	settings  string
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	root := t.TempDir()
	cache, err := assets.New(filepath.Join(root, "icons"), filepath.Join(root, "wallpapers"), zerolog.Nop())
	if err != nil {
		t.Fatalf("assets.New failed: %v", err)
	}

	ts := &testStore{
		peer:      &fakePeer{},
		notifier:  &fakeNotifier{},
		clipboard: &fakeClipboard{},
		assets:    cache,
		settings:  filepath.Join(root, "settings.json"),
	}
	ts.store = New(Options{
		SettingsPath: ts.settings,
		Assets:       cache,
		Notifier:     ts.notifier,
		Clipboard:    ts.clipboard,
		License:      fakeLicense{valid: map[string]bool{"good-key": true}},
		Logger:       zerolog.Nop(),
	})
	ts.store.AttachPeer(ts.peer)
	ts.store.Load()
	return ts
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) observe(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, event := range r.events {
		if event.Kind == kind {
			n++
		}
	}
	return n
}

func pngBase64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

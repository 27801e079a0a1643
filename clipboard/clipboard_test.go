package clipboard

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"airsync/config"
	"airsync/state"
)

type fakeReader struct {
	mu   sync.Mutex
	text string
	err  error
}

func (r *fakeReader) ReadText() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text, r.err
}

func (r *fakeReader) set(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text = text
}

type clipboardPeer struct {
	mu   sync.Mutex
	sent []string
}

func (p *clipboardPeer) SendDisconnectRequest()         {}
func (p *clipboardPeer) SendDismissNotification(string) {}
func (p *clipboardPeer) SendMediaControl(string)        {}
func (p *clipboardPeer) SendVolumeControl(string, *int) {}
func (p *clipboardPeer) SendClipboard(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, text)
}

func (p *clipboardPeer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func newSyncStore(t *testing.T, enabled bool) (*state.Store, *clipboardPeer) {
	t.Helper()
	st := state.New(state.Options{
		SettingsPath: filepath.Join(t.TempDir(), "settings.json"),
		Logger:       zerolog.Nop(),
	})
	st.Load()
	if err := st.UpdatePreferences(func(p *config.Preferences) { p.ClipboardSyncEnabled = enabled }); err != nil {
		t.Fatalf("UpdatePreferences failed: %v", err)
	}
	peer := &clipboardPeer{}
	st.AttachPeer(peer)
	return st, peer
}

func (p *clipboardPeer) texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

func setSync(t *testing.T, st *state.Store, enabled bool) {
	t.Helper()
	if err := st.UpdatePreferences(func(p *config.Preferences) { p.ClipboardSyncEnabled = enabled }); err != nil {
		t.Fatalf("UpdatePreferences failed: %v", err)
	}
}

func TestPollPushesOnlyChanges(t *testing.T) {
	st, peer := newSyncStore(t, true)
	reader := &fakeReader{text: "hello"}
	watcher := NewWatcher(reader, st, time.Hour, zerolog.Nop())

	if watcher.Poll() {
		t.Fatalf("first poll must only record the existing clipboard")
	}
	if watcher.Poll() {
		t.Fatalf("unchanged text must not be pushed")
	}
	reader.set("world")
	if !watcher.Poll() {
		t.Fatalf("changed text should push")
	}
	if got := peer.texts(); len(got) != 1 || got[0] != "world" {
		t.Fatalf("unexpected pushes: %v", got)
	}
}

func TestPollNeverSendsClipboardPresentWhenSyncStarts(t *testing.T) {
	st, peer := newSyncStore(t, true)
	reader := &fakeReader{text: "pre-existing secret"}
	watcher := NewWatcher(reader, st, time.Hour, zerolog.Nop())

	if watcher.Poll() {
		t.Fatalf("pre-existing clipboard must not be pushed")
	}
	if got := st.LastClipboard(); got != "pre-existing secret" {
		t.Fatalf("baseline not recorded: %q", got)
	}

	setSync(t, st, false)
	reader.set("copied while sync was off")
	if watcher.Poll() {
		t.Fatalf("disabled sync must not push")
	}

	setSync(t, st, true)
	if watcher.Poll() {
		t.Fatalf("text copied while sync was off must not be pushed when it turns on")
	}

	reader.set("fresh")
	if !watcher.Poll() {
		t.Fatalf("change after sync turned on should push")
	}
	if got := peer.texts(); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("unexpected pushes: %v", got)
	}
}

func TestPollDoesNotEchoRemoteClipboard(t *testing.T) {
	st, peer := newSyncStore(t, true)
	reader := &fakeReader{text: "local"}
	watcher := NewWatcher(reader, st, time.Hour, zerolog.Nop())
	watcher.Poll()

	st.ApplyRemoteClipboard("from phone")
	reader.set("from phone")
	if watcher.Poll() {
		t.Fatalf("text received from the phone must not be sent back")
	}
	if peer.count() != 0 {
		t.Fatalf("unexpected push: %v", peer.texts())
	}
}

func TestPollRespectsPreferenceAndErrors(t *testing.T) {
	st, peer := newSyncStore(t, false)
	reader := &fakeReader{text: "secret"}
	watcher := NewWatcher(reader, st, time.Hour, zerolog.Nop())

	if watcher.Poll() {
		t.Fatalf("disabled sync must not push")
	}

	setSync(t, st, true)
	reader.err = errors.New("no clipboard utility")
	if watcher.Poll() {
		t.Fatalf("read errors must not push")
	}
	reader.err = nil
	reader.set("")
	if watcher.Poll() {
		t.Fatalf("empty text must not push")
	}
	if peer.count() != 0 {
		t.Fatalf("unexpected pushes: %v", peer.sent)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	st, peer := newSyncStore(t, true)
	reader := &fakeReader{text: "tick"}
	watcher := NewWatcher(reader, st, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watcher.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return st.LastClipboard() == "tick" })
	if peer.count() != 0 {
		t.Fatalf("clipboard present at start must not be pushed: %v", peer.texts())
	}
	reader.set("tock")
	waitFor(t, func() bool { return peer.count() > 0 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	if got := peer.texts(); len(got) != 1 || got[0] != "tock" {
		t.Fatalf("expected exactly one push of the new text, got %v", got)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout")
}

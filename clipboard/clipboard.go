package clipboard

import (
	"context"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"airsync/config"
)

// DefaultPollInterval is how often the local clipboard is sampled.
const DefaultPollInterval = time.Second

// System reads and writes the OS clipboard.
type System struct{}

// ReadText returns the current clipboard text.
func (System) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

// WriteText replaces the clipboard text.
func (System) WriteText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// Available reports whether a clipboard backend was found.
func Available() bool {
	return !clipboard.Unsupported
}

// Reader reads clipboard text.
type Reader interface {
	ReadText() (string, error)
}

// Syncer receives local clipboard changes. *state.Store implements it.
type Syncer interface {
	Preferences() *config.Preferences
	SyncLocalClipboard(text string) bool
	SeedClipboard(text string)
}

// Watcher polls the clipboard and forwards changes while sync is enabled.
// Whatever is on the clipboard when sync turns on is taken as the baseline
// and never sent.
type Watcher struct {
	reader   Reader
	syncer   Syncer
	interval time.Duration
	log      zerolog.Logger

	// armed is set once a baseline was seeded for the current enabled stretch.
	armed bool
}

// NewWatcher builds a watcher. A non-positive interval uses DefaultPollInterval.
func NewWatcher(reader Reader, syncer Syncer, interval time.Duration, log zerolog.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		reader:   reader,
		syncer:   syncer,
		interval: interval,
		log:      log.With().Str("component", "clipboard").Logger(),
	}
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Poll()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll samples the clipboard once and reports whether text was pushed. The
// first successful sample after sync is enabled only seeds the baseline.
// Poll is not safe for concurrent use.
func (w *Watcher) Poll() bool {
	if !w.syncer.Preferences().ClipboardSyncEnabled {
		w.armed = false
		return false
	}
	text, err := w.reader.ReadText()
	if err != nil {
		w.log.Debug().Err(err).Msg("clipboard poll failed")
		return false
	}
	if !w.armed {
		w.syncer.SeedClipboard(text)
		w.armed = true
		return false
	}
	if text == "" {
		return false
	}
	if !w.syncer.SyncLocalClipboard(text) {
		return false
	}
	w.log.Debug().Int("length", len(text)).Msg("clipboard pushed")
	return true
}

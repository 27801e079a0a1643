package notify

import (
	"strings"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"airsync/state"
)

const (
	// DefaultBurst is how many toasts may be shown back to back.
	DefaultBurst = 10
	// DefaultRate is the sustained toast rate per second.
	DefaultRate = rate.Limit(1)
)

// SendFunc shows one native notification.
type SendFunc func(title, message, iconPath string) error

// Options configures a Notifier.
type Options struct {
	Logger zerolog.Logger
	Rate   rate.Limit
	Burst  int

	// Send defaults to beeep.Notify.
	Send SendFunc
}

// Notifier posts native OS notifications without blocking the caller.
// Toasts above the rate limit are dropped; the notification itself stays in
// the registry.
type Notifier struct {
	log     zerolog.Logger
	limiter *rate.Limiter
	send    SendFunc
	wg      sync.WaitGroup
}

// New builds a Notifier.
func New(options Options) *Notifier {
	if options.Rate <= 0 {
		options.Rate = DefaultRate
	}
	if options.Burst <= 0 {
		options.Burst = DefaultBurst
	}
	if options.Send == nil {
		options.Send = func(title, message, iconPath string) error {
			return beeep.Notify(title, message, iconPath)
		}
	}
	return &Notifier{
		log:     options.Logger.With().Str("component", "notify").Logger(),
		limiter: rate.NewLimiter(options.Rate, options.Burst),
		send:    options.Send,
	}
}

// Notify implements state.Notifier.
func (n *Notifier) Notify(notification state.NativeNotification) {
	if !n.limiter.Allow() {
		n.log.Debug().Str("id", notification.ID).Msg("toast rate limited")
		return
	}

	title := Title(notification.AppName, notification.Title)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.send(title, notification.Body, notification.IconPath); err != nil {
			n.log.Warn().Err(err).Str("id", notification.ID).Msg("native notification failed")
		}
	}()
}

// Wait blocks until in-flight toasts have been handed to the OS.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Title prefixes the app name when there is one.
func Title(app, title string) string {
	app = strings.TrimSpace(app)
	title = strings.TrimSpace(title)
	switch {
	case app == "":
		return title
	case title == "":
		return app
	default:
		return app + ": " + title
	}
}

package network

import (
	"errors"

	"airsync/models"
	"airsync/state"
)

func (s *Server) handleMessage(session *Session, payload []byte) {
	envelope, err := DecodeEnvelope(payload)
	if err != nil {
		s.log.Warn().Err(err).
			Str("session", session.ID()).
			Int("bytes", len(payload)).
			Msg("dropping malformed message")
		return
	}

	message, err := DecodeInbound(envelope)
	if err != nil {
		if errors.Is(err, ErrUnknownMessageType) {
			s.log.Debug().Str("type", envelope.Type).Msg("ignoring unknown message type")
			return
		}
		s.log.Warn().Err(err).Str("type", envelope.Type).Msg("dropping message")
		return
	}

	s.dispatch(message)
}

func (s *Server) dispatch(message Inbound) {
	switch msg := message.(type) {
	case DevicePayload:
		device := s.store.SetDevice(models.Device{
			Name:      msg.Name,
			IPAddress: msg.IPAddress,
			Port:      msg.Port,
		})
		s.log.Info().Str("device", device.Name).Str("ip", device.IPAddress).Msg("device announced")
		if msg.Wallpaper != "" {
			s.cacheWallpaper(msg.Wallpaper)
		}

	case NotificationPayload:
		s.store.AddNotification(models.Notification{
			NID:     msg.ID,
			Title:   msg.Title,
			Body:    msg.Body,
			App:     msg.App,
			Package: msg.Package,
		})

	case StatusPayload:
		s.store.SetStatus(models.DeviceStatus{
			Battery: models.Battery{
				Level:      msg.Battery.Level,
				IsCharging: msg.Battery.IsCharging,
			},
			Music: models.Music{
				Title:     msg.Music.Title,
				Artist:    msg.Music.Artist,
				IsPlaying: msg.Music.IsPlaying,
				Volume:    msg.Music.Volume,
				IsMuted:   msg.Music.IsMuted,
			},
			IsPaired: msg.IsPaired,
		})

	case AppIconsPayload:
		if len(msg.Skipped) > 0 {
			s.log.Warn().Strs("packages", msg.Skipped).Msg("skipping app icons with non-string data")
		}
		if len(msg.Icons) > 0 {
			s.enqueueIcons(msg)
		}

	case ClipboardPayload:
		s.store.ApplyRemoteClipboard(msg.Text)

	case WallpaperPayload:
		if msg.Wallpaper == "" {
			s.log.Debug().Msg("empty wallpaper ignored")
			return
		}
		s.cacheWallpaper(msg.Wallpaper)

	default:
		s.log.Warn().Str("type", message.MessageType()).Msg("unhandled message type")
	}
}

// Wallpapers are handled inline: only the image header is decoded and the
// payload is already bounded by MaxMessageSize.
func (s *Server) cacheWallpaper(encoded string) {
	path, err := s.store.CacheWallpaper(encoded)
	if err != nil {
		if errors.Is(err, state.ErrNoDevice) {
			s.log.Debug().Msg("wallpaper received before device, ignored")
			return
		}
		s.log.Warn().Err(err).Msg("cache wallpaper")
		return
	}
	s.log.Debug().Str("path", path).Msg("wallpaper cached")
}

// enqueueIcons hands a batch to the icon worker. A full queue blocks the
// read loop of this session only, until the worker catches up or the server stops.
func (s *Server) enqueueIcons(icons AppIconsPayload) {
	s.mu.Lock()
	queue := s.icons
	stopped := s.stopped
	s.mu.Unlock()

	select {
	case queue <- icons:
	case <-stopped:
	}
}

func (s *Server) iconLoop(queue <-chan AppIconsPayload, stopped <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case icons := <-queue:
			stored, failed := s.store.StoreAppIcons(icons.Icons)
			s.log.Info().Int("stored", stored).Int("failed", len(failed)).Msg("app icons processed")
		case <-stopped:
			return
		}
	}
}

package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"airsync/assets"
	"airsync/config"
	"airsync/models"
)

const (
	// ServerStatusStopped is the initial and post-Stop server status.
	ServerStatusStopped = "stopped"
	// ServerStatusStarted means the listener is accepting connections.
	ServerStatusStarted = "started"
)

var (
	// ErrNoDevice indicates an operation that needs a connected device.
	ErrNoDevice = errors.New("state: no device connected")
	// ErrNoAssetCache indicates the store was built without an asset cache.
	ErrNoAssetCache = errors.New("state: asset cache not configured")
)

// Peer is the outbound half of the message channel.
type Peer interface {
	SendDisconnectRequest()
	SendDismissNotification(nid string)
	SendMediaControl(action string)
	SendVolumeControl(action string, volume *int)
	SendClipboard(text string)
}

// NativeNotification is what the desktop toast shows.
type NativeNotification struct {
	ID       string
	AppName  string
	Title    string
	Body     string
	IconPath string
}

// Notifier posts native OS notifications. Implementations must not block.
type Notifier interface {
	Notify(n NativeNotification)
}

// ClipboardWriter sets the system clipboard.
type ClipboardWriter interface {
	WriteText(text string) error
}

// LicenseChecker verifies a license key. A nil result means no valid license.
type LicenseChecker interface {
	Check(ctx context.Context, key string) *models.LicenseDetails
}

// Options wires a Store to its collaborators. Nil collaborators are skipped.
type Options struct {
	SettingsPath string
	Assets       *assets.Cache
	Notifier     Notifier
	Clipboard    ClipboardWriter
	License      LicenseChecker
	Logger       zerolog.Logger
}

// Store is the single authoritative holder of session and preference state.
// All mutations go through its methods; observers are notified after each one.
type Store struct {
	log zerolog.Logger

	settingsPath string
	assets       *assets.Cache
	notifier     Notifier
	clipboard    ClipboardWriter
	license      LicenseChecker

	mu            sync.RWMutex
	prefs         *config.Preferences
	device        *models.Device
	status        *models.DeviceStatus
	registry      Registry
	serverStatus  string
	adbResult     string
	adbConnected  bool
	skipSave      bool
	lastClipboard string

	peerMu sync.RWMutex
	peer   Peer

	subMu   sync.RWMutex
	subs    map[int]subscription
	nextSub int
}

// New builds a store with default preferences. Call Load to read settings.json.
func New(options Options) *Store {
	return &Store{
		log:          options.Logger.With().Str("component", "state").Logger(),
		settingsPath: options.SettingsPath,
		assets:       options.Assets,
		notifier:     options.Notifier,
		clipboard:    options.Clipboard,
		license:      options.License,
		prefs:        config.Default(),
		serverStatus: ServerStatusStopped,
		subs:         make(map[int]subscription),
	}
}

// AttachPeer sets the outbound channel. It is set after construction
// because the server itself depends on the store.
func (s *Store) AttachPeer(peer Peer) {
	s.peerMu.Lock()
	s.peer = peer
	s.peerMu.Unlock()
}

// Subscribe registers fn for the given kinds, or for every kind when none
// are given. The returned func cancels the subscription.
func (s *Store) Subscribe(fn Observer, kinds ...EventKind) func() {
	sub := subscription{fn: fn}
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]bool, len(kinds))
		for _, kind := range kinds {
			sub.kinds[kind] = true
		}
	}

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

// Load reads preferences and registers assets left on disk. Failures fall
// back to defaults and are logged.
func (s *Store) Load() {
	if s.settingsPath != "" {
		prefs, err := config.LoadOrCreate(s.settingsPath)
		if err != nil {
			s.log.Warn().Err(err).Str("path", s.settingsPath).Msg("preferences unavailable, using defaults")
		}
		s.mu.Lock()
		s.prefs = prefs
		s.mu.Unlock()
	}

	if s.assets != nil {
		if err := s.assets.Scan(); err != nil {
			s.log.Warn().Err(err).Msg("asset cache scan failed")
		}
	}
}

// Save persists preferences together with the current asset index.
func (s *Store) Save() {
	s.mu.RLock()
	prefs := s.prefs.Clone()
	s.mu.RUnlock()
	s.save(prefs)
}

func (s *Store) save(prefs *config.Preferences) {
	if s.settingsPath == "" {
		return
	}
	if s.assets != nil {
		prefs.AppIcons = s.assets.Icons()
		prefs.DeviceWallpapers = s.assets.Wallpapers()
	}
	if err := config.Save(s.settingsPath, prefs); err != nil {
		s.log.Error().Err(err).Str("path", s.settingsPath).Msg("failed to save preferences")
	}
}

// persistIndex writes the asset index unless persistence is suppressed.
func (s *Store) persistIndex() {
	s.mu.RLock()
	skip := s.skipSave
	prefs := s.prefs.Clone()
	s.mu.RUnlock()
	if !skip {
		s.save(prefs)
	}
}

// Preferences returns a copy of the current preferences.
func (s *Store) Preferences() *config.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs.Clone()
}

// UpdatePreferences applies fn to a copy, validates it, then persists and publishes.
func (s *Store) UpdatePreferences(fn func(*config.Preferences)) error {
	s.mu.Lock()
	next := s.prefs.Clone()
	fn(next)
	next.WindowOpacity = config.ClampOpacity(next.WindowOpacity)
	if err := config.Validate(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.prefs = next
	skip := s.skipSave
	snapshot := next.Clone()
	s.mu.Unlock()

	if !skip {
		s.save(snapshot.Clone())
	}
	s.emit(Event{Kind: PreferencesChanged, Preferences: snapshot})
	return nil
}

// Device returns the current device or nil.
func (s *Store) Device() *models.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyDevice(s.device)
}

// SetDevice replaces the current device wholesale and assigns it a fresh id.
func (s *Store) SetDevice(device models.Device) models.Device {
	device.ID = uuid.NewString()

	s.mu.Lock()
	current := device
	s.device = &current
	s.mu.Unlock()

	s.log.Info().Str("name", device.Name).Str("ip", device.IPAddress).Int("port", device.Port).Msg("device connected")
	s.emit(Event{Kind: DeviceChanged, Device: copyDevice(&device)})
	return device
}

// DisconnectDevice asks the peer to disconnect and resets all session state.
func (s *Store) DisconnectDevice() {
	if peer := s.currentPeer(); peer != nil {
		peer.SendDisconnectRequest()
	}

	s.mu.Lock()
	hadDevice := s.device != nil
	s.device = nil
	s.status = nil
	s.registry.Clear()
	s.mu.Unlock()

	if hadDevice {
		s.log.Info().Msg("device disconnected")
	}
	s.emit(Event{Kind: DeviceChanged})
	s.emit(Event{Kind: NotificationsChanged, Notifications: []models.Notification{}})
	s.emit(Event{Kind: StatusChanged})
}

// Status returns the latest device status or nil.
func (s *Store) Status() *models.DeviceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return nil
	}
	status := *s.status
	return &status
}

// SetStatus replaces the device status wholesale.
func (s *Store) SetStatus(status models.DeviceStatus) {
	s.mu.Lock()
	current := status
	s.status = &current
	s.mu.Unlock()

	s.emit(Event{Kind: StatusChanged, Status: &status})
}

// Notifications returns the registry in display order.
func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Snapshot()
}

// AddNotification prepends n and posts a native notification for it.
func (s *Store) AddNotification(n models.Notification) models.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.registry.Prepend(n)
	snapshot := s.registry.Snapshot()
	s.mu.Unlock()

	added := n
	s.emit(Event{Kind: NotificationsChanged, Notifications: snapshot, Added: &added})
	s.postNative(n)
	return n
}

// RemoveNotificationByID drops every entry with nid and tells the peer to
// dismiss it. Unknown ids leave the registry untouched.
func (s *Store) RemoveNotificationByID(nid string) {
	s.mu.Lock()
	removed := s.registry.RemoveByNID(nid)
	snapshot := s.registry.Snapshot()
	s.mu.Unlock()

	if removed > 0 {
		s.emit(Event{Kind: NotificationsChanged, Notifications: snapshot, RemovedNID: nid})
	}
	if peer := s.currentPeer(); peer != nil {
		peer.SendDismissNotification(nid)
	}
}

// HideNotification removes one entry by its local id, then dismisses its NID.
func (s *Store) HideNotification(localID string) bool {
	s.mu.Lock()
	n, ok := s.registry.RemoveByLocalID(localID)
	snapshot := s.registry.Snapshot()
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.emit(Event{Kind: NotificationsChanged, Notifications: snapshot, RemovedNID: n.NID})
	s.RemoveNotificationByID(n.NID)
	return true
}

// ClearNotifications empties the registry with a single change event.
func (s *Store) ClearNotifications() {
	s.mu.Lock()
	cleared := s.registry.Clear()
	s.mu.Unlock()

	if cleared > 0 {
		s.emit(Event{Kind: NotificationsChanged, Notifications: []models.Notification{}})
	}
}

// StoreAppIcons caches a batch of icons. Per-package failures are logged by
// the cache and returned; the rest of the batch is still stored.
func (s *Store) StoreAppIcons(icons map[string]string) (int, map[string]error) {
	if s.assets == nil {
		return 0, map[string]error{"*": ErrNoAssetCache}
	}
	stored, failed := s.assets.StoreIcons(icons)
	if stored > 0 {
		s.persistIndex()
	}
	s.emit(Event{Kind: AppIconsChanged})
	return stored, failed
}

// IconPath returns the cached icon for a package.
func (s *Store) IconPath(packageName string) (string, bool) {
	if s.assets == nil {
		return "", false
	}
	return s.assets.IconPath(packageName)
}

// CacheWallpaper stores a wallpaper for the current device.
func (s *Store) CacheWallpaper(encoded string) (string, error) {
	if s.assets == nil {
		return "", ErrNoAssetCache
	}

	s.mu.RLock()
	device := copyDevice(s.device)
	s.mu.RUnlock()
	if device == nil {
		return "", ErrNoDevice
	}

	path, err := s.assets.StoreWallpaper(device.CompositeKey(), encoded)
	if err != nil {
		return "", fmt.Errorf("cache wallpaper for %q: %w", device.CompositeKey(), err)
	}

	s.mu.Lock()
	if s.device != nil && s.device.ID == device.ID {
		s.device.Wallpaper = path
	}
	s.mu.Unlock()

	s.persistIndex()
	s.emit(Event{Kind: WallpapersChanged})
	return path, nil
}

// CurrentWallpaper returns the cached wallpaper of the current device.
func (s *Store) CurrentWallpaper() (string, bool) {
	device := s.Device()
	if device == nil {
		return "", false
	}
	return s.WallpaperFor(device.CompositeKey())
}

// WallpaperFor returns a cached wallpaper by composite key.
func (s *Store) WallpaperFor(key string) (string, bool) {
	if s.assets == nil {
		return "", false
	}
	return s.assets.WallpaperPath(key)
}

// ApplyRemoteClipboard writes text from the phone to the system clipboard.
func (s *Store) ApplyRemoteClipboard(text string) {
	s.mu.Lock()
	s.lastClipboard = text
	s.mu.Unlock()

	if s.clipboard == nil {
		return
	}
	if err := s.clipboard.WriteText(text); err != nil {
		s.log.Error().Err(err).Msg("failed to set system clipboard")
	}
}

// SyncLocalClipboard pushes text to the phone when it differs from the last
// value seen in either direction. It reports whether anything was sent.
func (s *Store) SyncLocalClipboard(text string) bool {
	s.mu.Lock()
	if text == s.lastClipboard {
		s.mu.Unlock()
		return false
	}
	s.lastClipboard = text
	s.mu.Unlock()

	s.PushClipboard(text)
	return true
}

// SeedClipboard records text as already seen without sending it, so only
// later local changes reach the phone.
func (s *Store) SeedClipboard(text string) {
	s.mu.Lock()
	s.lastClipboard = text
	s.mu.Unlock()
}

// LastClipboard returns the last clipboard text seen in either direction.
func (s *Store) LastClipboard() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastClipboard
}

// PushClipboard sends text to the phone.
func (s *Store) PushClipboard(text string) {
	if peer := s.currentPeer(); peer != nil {
		peer.SendClipboard(text)
	}
}

// SendMediaControl forwards a media action such as "playPause" or "next".
func (s *Store) SendMediaControl(action string) {
	if peer := s.currentPeer(); peer != nil {
		peer.SendMediaControl(action)
	}
}

// SendVolumeControl forwards a volume action, with an absolute level when set.
func (s *Store) SendVolumeControl(action string, volume *int) {
	if peer := s.currentPeer(); peer != nil {
		peer.SendVolumeControl(action, volume)
	}
}

// ServerStatus returns the message channel status string.
func (s *Store) ServerStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverStatus
}

// SetServerStatus records the message channel status string.
func (s *Store) SetServerStatus(status string) {
	s.mu.Lock()
	s.serverStatus = status
	s.mu.Unlock()

	s.emit(Event{Kind: ServerStatusChanged, ServerStatus: status})
}

// ADBResult returns the last ADB result string and connection flag.
func (s *Store) ADBResult() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.adbResult, s.adbConnected
}

// SetADBResult records the outcome of an ADB or mirroring action.
func (s *Store) SetADBResult(result string, connected bool) {
	s.mu.Lock()
	s.adbResult = result
	s.adbConnected = connected
	s.mu.Unlock()

	s.emit(Event{Kind: ADBChanged, ADBResult: result, ADBConnected: connected})
}

// License returns the cached license details and plus flag.
func (s *Store) License() (*models.LicenseDetails, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs := s.prefs.Clone()
	return prefs.LicenseDetails, prefs.IsPlus
}

// SetLicense caches verified details, or clears them when nil. It persists
// unless called inside WithoutPersistence.
func (s *Store) SetLicense(details *models.LicenseDetails) {
	s.mu.Lock()
	if details != nil {
		copied := *details
		details = &copied
	}
	s.prefs.LicenseDetails = details
	s.prefs.IsPlus = details != nil
	skip := s.skipSave
	snapshot := s.prefs.Clone()
	s.mu.Unlock()

	if !skip {
		s.save(snapshot.Clone())
	}
	s.emit(Event{Kind: LicenseChanged, License: snapshot.LicenseDetails, IsPlus: snapshot.IsPlus})
}

// SetPlusTemporarily overrides the plus flag without writing to disk.
func (s *Store) SetPlusTemporarily(value bool) {
	s.WithoutPersistence(func() {
		s.mu.Lock()
		s.prefs.IsPlus = value
		snapshot := s.prefs.Clone()
		s.mu.Unlock()
		s.emit(Event{Kind: LicenseChanged, License: snapshot.LicenseDetails, IsPlus: value})
	})
}

// WithoutPersistence runs fn with saving suppressed.
func (s *Store) WithoutPersistence(fn func()) {
	s.mu.Lock()
	s.skipSave = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.skipSave = false
		s.mu.Unlock()
	}()
	fn()
}

// RefreshLicense verifies key, or the stored key when key is empty, and
// updates the plus state. Verification failures count as no license.
func (s *Store) RefreshLicense(ctx context.Context, key string) *models.LicenseDetails {
	if key == "" {
		if details, _ := s.License(); details != nil {
			key = details.Key
		}
	}

	var details *models.LicenseDetails
	if key != "" && s.license != nil {
		details = s.license.Check(ctx, key)
	}
	if key != "" && details == nil {
		s.log.Info().Msg("license key rejected or unverifiable")
	}
	s.SetLicense(details)
	return details
}

func (s *Store) postNative(n models.Notification) {
	if s.notifier == nil {
		return
	}
	iconPath, _ := s.IconPath(n.Package)
	s.notifier.Notify(NativeNotification{
		ID:       n.NID,
		AppName:  n.App,
		Title:    n.Title,
		Body:     n.Body,
		IconPath: iconPath,
	})
}

func (s *Store) currentPeer() Peer {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	return s.peer
}

func (s *Store) emit(event Event) {
	s.subMu.RLock()
	targets := make([]Observer, 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if sub := s.subs[id]; sub.wants(event.Kind) {
			targets = append(targets, sub.fn)
		}
	}
	s.subMu.RUnlock()

	for _, fn := range targets {
		s.deliver(fn, event)
	}
}

func (s *Store) deliver(fn Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("event", event.Kind.String()).Msg("observer panicked")
		}
	}()
	fn(event)
}

func copyDevice(device *models.Device) *models.Device {
	if device == nil {
		return nil
	}
	out := *device
	return &out
}

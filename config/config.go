package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"airsync/models"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = ".airsync"
	// CacheDirectoryName is the directory under the user cache dir.
	CacheDirectoryName = "airsync"
	// DefaultServerPort is the WebSocket port used when no user override exists.
	DefaultServerPort = 6996
	// DefaultADBPort is the wireless ADB port used for mirroring.
	DefaultADBPort = 5555
	// DefaultWindowOpacity keeps the window fully opaque.
	DefaultWindowOpacity = 1.0
	// DataDirEnv overrides the data directory.
	DataDirEnv = "AIRSYNC_DATA_DIR"

	settingsFileName = "settings.json"
	databaseFileName = "history.db"
	envFileName      = ".env"
	fallbackName     = "AirSync Desktop"
)

var (
	// ErrCorruptPreferences indicates settings.json could not be parsed.
	ErrCorruptPreferences = errors.New("config: preferences file is corrupt")
	// ErrInvalidPreference indicates a value outside its allowed range.
	ErrInvalidPreference = errors.New("config: invalid preference value")
)

// Preferences is the persisted subset of application state.
type Preferences struct {
	DeviceName           string                 `json:"device_name" yaml:"device_name"`
	Port                 int                    `json:"port" yaml:"port"`
	ADBPort              int                    `json:"adb_port" yaml:"adb_port"`
	MirroringPlus        bool                   `json:"mirroring_plus" yaml:"mirroring_plus"`
	ADBEnabled           bool                   `json:"adb_enabled" yaml:"adb_enabled"`
	ClipboardSyncEnabled bool                   `json:"is_clipboard_sync_enabled" yaml:"is_clipboard_sync_enabled"`
	WindowOpacity        float64                `json:"window_opacity" yaml:"window_opacity"`
	IsPlus               bool                   `json:"is_plus" yaml:"is_plus"`
	LicenseDetails       *models.LicenseDetails `json:"license_details" yaml:"license_details"`
	AppIcons             map[string]string      `json:"app_icons" yaml:"app_icons"`
	DeviceWallpapers     map[string]string      `json:"device_wallpaper" yaml:"device_wallpaper"`
}

// Paths is the on-disk layout used by the application.
type Paths struct {
	DataDir      string
	SettingsFile string
	LogDir       string
	WallpaperDir string
	IconDir      string
	DatabaseFile string
	EnvFile      string
}

// ResolveDataDir returns the per-user data directory.
//
// If AIRSYNC_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(home, AppDirectoryName), nil
}

// ResolvePaths builds the full layout. Icons live in the user cache directory
// unless the data directory is overridden, in which case everything is kept
// under the override.
func ResolvePaths() (Paths, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return Paths{}, err
	}

	iconDir := filepath.Join(dataDir, "cache", "AppIcons")
	if os.Getenv(DataDirEnv) == "" {
		if cacheDir, err := os.UserCacheDir(); err == nil {
			iconDir = filepath.Join(cacheDir, CacheDirectoryName, "AppIcons")
		}
	}

	return PathsFor(dataDir, iconDir), nil
}

// PathsFor builds a layout rooted at dataDir with an explicit icon directory.
func PathsFor(dataDir, iconDir string) Paths {
	return Paths{
		DataDir:      dataDir,
		SettingsFile: filepath.Join(dataDir, settingsFileName),
		LogDir:       filepath.Join(dataDir, "logs"),
		WallpaperDir: filepath.Join(dataDir, "wallpapers"),
		IconDir:      iconDir,
		DatabaseFile: filepath.Join(dataDir, databaseFileName),
		EnvFile:      filepath.Join(dataDir, envFileName),
	}
}

// Ensure creates the directory layout if needed.
func (p Paths) Ensure() error {
	dirs := []string{p.DataDir, p.LogDir, p.WallpaperDir, p.IconDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Default returns preferences for a first launch.
func Default() *Preferences {
	return &Preferences{
		DeviceName:       hostnameOrFallback(),
		Port:             DefaultServerPort,
		ADBPort:          DefaultADBPort,
		WindowOpacity:    DefaultWindowOpacity,
		AppIcons:         map[string]string{},
		DeviceWallpapers: map[string]string{},
	}
}

// Load reads and unmarshals settings.json from disk. Keys missing from the
// file keep their default values.
func Load(path string) (*Preferences, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}

	prefs := Default()
	if err := json.Unmarshal(raw, prefs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPreferences, err)
	}
	Normalize(prefs)
	return prefs, nil
}

// Save marshals and writes settings.json to disk.
func Save(path string, prefs *Preferences) error {
	raw, err := json.MarshalIndent(prefs, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}
	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// LoadOrCreate always returns usable preferences. A missing file is created
// with defaults. A corrupt or unreadable file is replaced by defaults, which
// are persisted immediately, and the cause is returned alongside them.
func LoadOrCreate(path string) (*Preferences, error) {
	prefs, err := Load(path)
	if err == nil {
		return prefs, nil
	}

	prefs = Default()
	if saveErr := Save(path, prefs); saveErr != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return prefs, saveErr
		}
		return prefs, errors.Join(err, saveErr)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return prefs, nil
	}
	return prefs, err
}

// Normalize repairs out-of-range values in place and reports whether anything changed.
func Normalize(prefs *Preferences) bool {
	updated := false

	if prefs.DeviceName == "" {
		prefs.DeviceName = hostnameOrFallback()
		updated = true
	}
	if !validPort(prefs.Port) {
		prefs.Port = DefaultServerPort
		updated = true
	}
	if !validPort(prefs.ADBPort) {
		prefs.ADBPort = DefaultADBPort
		updated = true
	}
	if clamped := ClampOpacity(prefs.WindowOpacity); clamped != prefs.WindowOpacity {
		prefs.WindowOpacity = clamped
		updated = true
	}
	if prefs.AppIcons == nil {
		prefs.AppIcons = map[string]string{}
		updated = true
	}
	if prefs.DeviceWallpapers == nil {
		prefs.DeviceWallpapers = map[string]string{}
		updated = true
	}

	return updated
}

// Validate rejects values a user cannot set.
func Validate(prefs *Preferences) error {
	if !validPort(prefs.Port) {
		return fmt.Errorf("%w: port %d", ErrInvalidPreference, prefs.Port)
	}
	if !validPort(prefs.ADBPort) {
		return fmt.Errorf("%w: adb port %d", ErrInvalidPreference, prefs.ADBPort)
	}
	if prefs.WindowOpacity < 0 || prefs.WindowOpacity > 1 {
		return fmt.Errorf("%w: window opacity %v", ErrInvalidPreference, prefs.WindowOpacity)
	}
	return nil
}

// ClampOpacity bounds an opacity value to [0, 1].
func ClampOpacity(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	default:
		return value
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (p *Preferences) Clone() *Preferences {
	if p == nil {
		return nil
	}
	out := *p
	if p.LicenseDetails != nil {
		details := *p.LicenseDetails
		out.LicenseDetails = &details
	}
	out.AppIcons = copyMap(p.AppIcons)
	out.DeviceWallpapers = copyMap(p.DeviceWallpapers)
	return &out
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func hostnameOrFallback() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackName
}

package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp"
)

const iconExtension = ".png"

var (
	// ErrInvalidKey indicates a cache key that cannot name a file.
	ErrInvalidKey = errors.New("assets: invalid cache key")
)

// Cache is the on-disk store for app icons and device wallpapers.
//
// Icons are keyed by package name and always re-encoded as PNG. Wallpapers
// are keyed by the device composite key and stored in their original format.
type Cache struct {
	log zerolog.Logger

	iconDir      string
	wallpaperDir string

	mu         sync.RWMutex
	icons      map[string]string
	wallpapers map[string]string
}

// New creates both cache directories if needed.
func New(iconDir, wallpaperDir string, log zerolog.Logger) (*Cache, error) {
	for _, dir := range []string{iconDir, wallpaperDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache directory %q: %w", dir, err)
		}
	}

	return &Cache{
		log:          log.With().Str("component", "assets").Logger(),
		iconDir:      iconDir,
		wallpaperDir: wallpaperDir,
		icons:        make(map[string]string),
		wallpapers:   make(map[string]string),
	}, nil
}

// Scan registers files left by a previous session, using the file stem as key.
func (c *Cache) Scan() error {
	icons, err := scanDir(c.iconDir, iconExtension)
	if err != nil {
		return err
	}
	wallpapers, err := scanDir(c.wallpaperDir, "")
	if err != nil {
		return err
	}

	c.mu.Lock()
	for key, path := range icons {
		c.icons[key] = path
	}
	for key, path := range wallpapers {
		c.wallpapers[key] = path
	}
	c.mu.Unlock()

	c.log.Debug().Int("icons", len(icons)).Int("wallpapers", len(wallpapers)).Msg("asset cache scanned")
	return nil
}

// StoreIcon decodes one icon, re-encodes it as PNG and records its path.
// An update for a known package overwrites the existing file.
func (c *Cache) StoreIcon(packageName, encoded string) (string, error) {
	key, err := sanitizeKey(packageName)
	if err != nil {
		return "", err
	}

	data, err := DecodeBase64(encoded)
	if err != nil {
		return "", err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode icon image (%s): %w", humanize.Bytes(uint64(len(data))), err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode icon png: %w", err)
	}

	path := filepath.Join(c.iconDir, key+iconExtension)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.icons[key] = path
	c.mu.Unlock()

	c.log.Debug().Str("package", key).Str("format", format).Str("size", humanize.Bytes(uint64(buf.Len()))).Msg("icon cached")
	return path, nil
}

// StoreIcons processes a batch. A failing package is logged and skipped
// without affecting the rest; the failures are returned keyed by package.
func (c *Cache) StoreIcons(icons map[string]string) (int, map[string]error) {
	packages := make([]string, 0, len(icons))
	for pkg := range icons {
		packages = append(packages, pkg)
	}
	sort.Strings(packages)

	stored := 0
	failed := make(map[string]error)
	for _, pkg := range packages {
		if _, err := c.StoreIcon(pkg, icons[pkg]); err != nil {
			failed[pkg] = err
			c.log.Error().Err(err).Str("package", pkg).Int("encoded_len", len(icons[pkg])).Msg("failed to cache app icon")
			continue
		}
		stored++
	}
	return stored, failed
}

// IconPath returns the cached PNG path for a package.
func (c *Cache) IconPath(packageName string) (string, bool) {
	key, err := sanitizeKey(packageName)
	if err != nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	path, ok := c.icons[key]
	return path, ok
}

// Icons returns a copy of the icon index.
func (c *Cache) Icons() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyIndex(c.icons)
}

// StoreWallpaper decodes a wallpaper and writes it under key. The image is
// validated and its format picks the file extension.
func (c *Cache) StoreWallpaper(key, encoded string) (string, error) {
	safeKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}

	data, err := DecodeBase64(encoded)
	if err != nil {
		return "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode wallpaper image (%s): %w", humanize.Bytes(uint64(len(data))), err)
	}

	path := filepath.Join(c.wallpaperDir, safeKey+extensionFor(format))
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}

	c.mu.Lock()
	previous, hadPrevious := c.wallpapers[safeKey]
	c.wallpapers[safeKey] = path
	c.mu.Unlock()

	if hadPrevious && previous != path {
		if err := os.Remove(previous); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Err(err).Str("path", previous).Msg("failed to remove stale wallpaper")
		}
	}

	c.log.Debug().Str("key", safeKey).Str("format", format).Str("size", humanize.Bytes(uint64(len(data)))).Msg("wallpaper cached")
	return path, nil
}

// WallpaperPath returns the cached wallpaper path for a composite key.
func (c *Cache) WallpaperPath(key string) (string, bool) {
	safeKey, err := sanitizeKey(key)
	if err != nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	path, ok := c.wallpapers[safeKey]
	return path, ok
}

// Wallpapers returns a copy of the wallpaper index.
func (c *Cache) Wallpapers() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyIndex(c.wallpapers)
}

func scanDir(dir, extension string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("scan %q: %w", dir, err)
	}

	found := make(map[string]string, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		if extension != "" && !strings.EqualFold(ext, extension) {
			continue
		}
		found[strings.TrimSuffix(name, ext)] = filepath.Join(dir, name)
	}
	return found, nil
}

func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, key)
	if safe == "" || safe == "." || safe == ".." || strings.HasPrefix(safe, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return safe, nil
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".img"
	default:
		return "." + format
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".asset-*")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into %q: %w", path, err)
	}
	return nil
}

func copyIndex(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

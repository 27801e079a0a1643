package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"airsync/models"
)

func TestLoadOrCreateWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	prefs, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	if prefs.Port != DefaultServerPort || prefs.ADBPort != DefaultADBPort {
		t.Fatalf("unexpected default ports: %d %d", prefs.Port, prefs.ADBPort)
	}
	if prefs.WindowOpacity != DefaultWindowOpacity {
		t.Fatalf("unexpected default opacity: %v", prefs.WindowOpacity)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected defaults to be persisted: %v", err)
	}
}

func TestLoadOrCreateRecoversFromCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	prefs, err := LoadOrCreate(path)
	if !errors.Is(err, ErrCorruptPreferences) {
		t.Fatalf("expected ErrCorruptPreferences, got %v", err)
	}
	if prefs == nil || prefs.Port != DefaultServerPort {
		t.Fatalf("expected default preferences, got %+v", prefs)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("expected defaults to be re-persisted, reload failed: %v", err)
	}
	if reloaded.Port != DefaultServerPort {
		t.Fatalf("unexpected reloaded port: %d", reloaded.Port)
	}
}

func TestSaveLoadKeepsLicenseAndToggles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	prefs := Default()
	prefs.DeviceName = "Desk"
	prefs.Port = 7000
	prefs.ClipboardSyncEnabled = true
	prefs.IsPlus = true
	prefs.LicenseDetails = &models.LicenseDetails{Email: "a@b.c", Key: "k"}
	prefs.AppIcons["com.example"] = "/tmp/com.example.png"

	if err := Save(path, prefs); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.DeviceName != "Desk" || got.Port != 7000 || !got.ClipboardSyncEnabled || !got.IsPlus {
		t.Fatalf("unexpected preferences: %+v", got)
	}
	if got.LicenseDetails == nil || got.LicenseDetails.Key != "k" {
		t.Fatalf("license details not persisted: %+v", got.LicenseDetails)
	}
	if got.AppIcons["com.example"] != "/tmp/com.example.png" {
		t.Fatalf("app icons not persisted: %+v", got.AppIcons)
	}
}

func TestLoadFillsMissingKeysWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"device_name":"Only Name","window_opacity":4}`), 0o600); err != nil {
		t.Fatalf("write partial file: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.DeviceName != "Only Name" {
		t.Fatalf("unexpected device name: %q", got.DeviceName)
	}
	if got.Port != DefaultServerPort {
		t.Fatalf("expected default port, got %d", got.Port)
	}
	if got.WindowOpacity != 1 {
		t.Fatalf("expected clamped opacity, got %v", got.WindowOpacity)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	prefs := Default()
	prefs.Port = 70000
	if err := Validate(prefs); !errors.Is(err, ErrInvalidPreference) {
		t.Fatalf("expected ErrInvalidPreference, got %v", err)
	}

	prefs = Default()
	prefs.WindowOpacity = -0.5
	if err := Validate(prefs); !errors.Is(err, ErrInvalidPreference) {
		t.Fatalf("expected ErrInvalidPreference for opacity, got %v", err)
	}
}

func TestResolvePathsHonorsOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DataDirEnv, dir)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("ResolvePaths failed: %v", err)
	}
	if paths.DataDir != dir {
		t.Fatalf("unexpected data dir: %q", paths.DataDir)
	}
	if paths.IconDir != filepath.Join(dir, "cache", "AppIcons") {
		t.Fatalf("unexpected icon dir: %q", paths.IconDir)
	}
	if err := paths.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	for _, d := range []string{paths.LogDir, paths.WallpaperDir, paths.IconDir} {
		if info, err := os.Stat(d); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", d, err)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	prefs := Default()
	prefs.LicenseDetails = &models.LicenseDetails{Key: "a"}
	prefs.AppIcons["x"] = "y"

	clone := prefs.Clone()
	clone.LicenseDetails.Key = "b"
	clone.AppIcons["x"] = "z"

	if prefs.LicenseDetails.Key != "a" || prefs.AppIcons["x"] != "y" {
		t.Fatalf("clone shares state with original: %+v", prefs)
	}
}

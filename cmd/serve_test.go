package cmd

import (
	"errors"
	"testing"

	"airsync/config"
	"airsync/state"
)

func TestResolvePort(t *testing.T) {
	tests := []struct {
		name       string
		flag       int
		env        string
		configured int
		want       int
		wantErr    bool
	}{
		{name: "configured", configured: 6996, want: 6996},
		{name: "env overrides configured", env: "7000", configured: 6996, want: 7000},
		{name: "flag overrides env", flag: 7001, env: "7000", configured: 6996, want: 7001},
		{name: "env not a number", env: "seven", configured: 6996, wantErr: true},
		{name: "out of range", flag: 70000, configured: 6996, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(portEnv, tt.env)
			got, err := resolvePort(tt.flag, tt.configured)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolvePort() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("resolvePort() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolvePortRangeErrorIsInvalidPreference(t *testing.T) {
	t.Setenv(portEnv, "")
	_, err := resolvePort(0, 0)
	if !errors.Is(err, config.ErrInvalidPreference) {
		t.Fatalf("expected ErrInvalidPreference, got %v", err)
	}
}

func TestSupervisorQueuesLatestPortChange(t *testing.T) {
	sup := &supervisor{port: 6996, ports: make(chan int, 1)}

	sup.onPreferences(state.Event{Kind: state.PreferencesChanged, Preferences: &config.Preferences{Port: 6996}})
	select {
	case port := <-sup.ports:
		t.Fatalf("unchanged port should not queue a restart, got %d", port)
	default:
	}

	sup.onPreferences(state.Event{Kind: state.PreferencesChanged, Preferences: &config.Preferences{Port: 7000}})
	sup.onPreferences(state.Event{Kind: state.PreferencesChanged, Preferences: &config.Preferences{Port: 7001}})

	select {
	case port := <-sup.ports:
		if port != 7001 {
			t.Fatalf("expected latest port 7001, got %d", port)
		}
	default:
		t.Fatal("expected a queued port change")
	}
}

func TestUserSettingsChangedIgnoresServerOwnedFields(t *testing.T) {
	current := config.Default()
	loaded := current.Clone()
	loaded.IsPlus = true
	loaded.AppIcons["com.chat"] = "/tmp/com.chat.png"
	if userSettingsChanged(current, loaded) {
		t.Fatal("server-owned fields should not count as a user change")
	}

	loaded.ClipboardSyncEnabled = !current.ClipboardSyncEnabled
	if !userSettingsChanged(current, loaded) {
		t.Fatal("expected clipboard toggle to count as a change")
	}
}

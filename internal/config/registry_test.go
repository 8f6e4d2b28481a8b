package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// useTempConfig points the config system at a fresh directory
func useTempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("LOCALAPPDATA", dir)
	return dir
}

func TestNewRegistryDefaults(t *testing.T) {
	r := NewRegistry()

	if r.Version != 1 {
		t.Errorf("Version = %d, want 1", r.Version)
	}
	if r.Receivers == nil {
		t.Error("Receivers map not initialized")
	}
	if r.Preferences == nil || !r.Preferences.AutoDiscover {
		t.Errorf("Preferences = %+v, want auto-discover enabled", r.Preferences)
	}
	if r.Preferences.Relay == nil || r.Preferences.Relay.ListenAddr == "" {
		t.Errorf("Relay preferences = %+v, want a default listen address", r.Preferences.Relay)
	}
}

func TestEnsureReceiver(t *testing.T) {
	r := NewRegistry()

	first := r.EnsureReceiver("dev-1")
	if first == nil {
		t.Fatal("EnsureReceiver() = nil")
	}
	first.Nickname = "office"

	second := r.EnsureReceiver("dev-1")
	if second != first {
		t.Error("EnsureReceiver() created a duplicate entry")
	}
	if second.Nickname != "office" {
		t.Error("EnsureReceiver() lost existing metadata")
	}
}

func TestUpdateReceiverSeen(t *testing.T) {
	r := NewRegistry()

	before := time.Now()
	r.UpdateReceiverSeen("dev-1", "Living Room TV", "Chromecast", "192.168.1.50", 8009)

	receiver := r.GetReceiver("dev-1")
	if receiver == nil {
		t.Fatal("receiver not recorded")
	}
	if receiver.Name != "Living Room TV" || receiver.Model != "Chromecast" {
		t.Errorf("receiver = %+v", receiver)
	}
	if receiver.LastIP != "192.168.1.50" || receiver.Port != 8009 {
		t.Errorf("address = %s:%d", receiver.LastIP, receiver.Port)
	}
	if receiver.LastSeen.Before(before) {
		t.Error("LastSeen not updated")
	}
}

func TestFindReceiver(t *testing.T) {
	r := NewRegistry()
	r.UpdateReceiverSeen("dev-1", "Living Room TV", "Chromecast", "10.0.0.1", 8009)
	r.SetReceiverNickname("dev-1", "tv")
	r.UpdateReceiverSeen("dev-2", "Kitchen display", "Nest Hub", "10.0.0.2", 8009)

	tests := []struct {
		key    string
		wantID string
	}{
		{"dev-1", "dev-1"},
		{"tv", "dev-1"},
		{"Living Room TV", "dev-1"},
		{"Kitchen display", "dev-2"},
		{"unknown", ""},
	}

	for _, tt := range tests {
		id, _ := r.FindReceiver(tt.key)
		if id != tt.wantID {
			t.Errorf("FindReceiver(%q) = %q, want %q", tt.key, id, tt.wantID)
		}
	}
}

func TestDefaultReceiver(t *testing.T) {
	r := NewRegistry()
	r.UpdateReceiverSeen("dev-1", "Living Room TV", "Chromecast", "10.0.0.1", 8009)
	r.SetReceiverNickname("dev-1", "tv")

	if id, _ := r.DefaultReceiver(); id != "" {
		t.Errorf("DefaultReceiver() = %q with no preference, want empty", id)
	}

	r.Preferences.DefaultReceiver = "tv"
	id, receiver := r.DefaultReceiver()
	if id != "dev-1" || receiver == nil {
		t.Errorf("DefaultReceiver() = %q, want dev-1", id)
	}

	r.Preferences.DefaultReceiver = "gone"
	if id, _ := r.DefaultReceiver(); id != "" {
		t.Errorf("DefaultReceiver() = %q for a vanished receiver, want empty", id)
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := useTempConfig(t)

	r := NewRegistry()
	r.UpdateReceiverSeen("dev-1", "Living Room TV", "Chromecast", "192.168.1.50", 8009)
	r.SetReceiverNickname("dev-1", "tv")
	r.Preferences.DefaultReceiver = "tv"

	if err := r.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := filepath.Join(dir, appName, configFile)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.HasPrefix(string(data), "# castctl configuration file") {
		t.Error("saved file is missing the header comment")
	}

	loaded, err := ReloadRegistry()
	if err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}
	receiver := loaded.GetReceiver("dev-1")
	if receiver == nil {
		t.Fatal("reloaded registry lost the receiver")
	}
	if receiver.Nickname != "tv" || receiver.LastIP != "192.168.1.50" {
		t.Errorf("reloaded receiver = %+v", receiver)
	}
	if loaded.Preferences.DefaultReceiver != "tv" {
		t.Errorf("reloaded default receiver = %q", loaded.Preferences.DefaultReceiver)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	useTempConfig(t)

	r, err := ReloadRegistry()
	if err != nil {
		t.Fatalf("ReloadRegistry() error = %v", err)
	}
	if r.Version != 1 || len(r.Receivers) != 0 {
		t.Errorf("registry from missing file = %+v, want fresh defaults", r)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := useTempConfig(t)

	path := filepath.Join(dir, appName)
	if err := os.MkdirAll(path, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, configFile), []byte("version: 9\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := ReloadRegistry(); err == nil {
		t.Fatal("ReloadRegistry() accepted an unsupported version")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := useTempConfig(t)

	path := filepath.Join(dir, appName)
	if err := os.MkdirAll(path, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, configFile), []byte("{not yaml"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := ReloadRegistry(); err == nil {
		t.Fatal("ReloadRegistry() accepted malformed YAML")
	}
}

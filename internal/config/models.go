package config

import "time"

// Registry represents the entire user configuration file: known receivers
// and application preferences.
type Registry struct {
	Version     int                  `yaml:"version"`
	Receivers   map[string]*Receiver `yaml:"receivers,omitempty"` // Keyed by receiver id
	Preferences *Preferences         `yaml:"preferences,omitempty"`
}

// Receiver represents stored metadata for a single cast receiver. This is
// client-side bookkeeping; the receiver itself stores none of it.
type Receiver struct {
	Nickname string    `yaml:"nickname,omitempty"`  // User-chosen name
	Name     string    `yaml:"name,omitempty"`      // Advertised friendly name
	Model    string    `yaml:"model,omitempty"`     // Advertised model
	LastIP   string    `yaml:"last_ip,omitempty"`   // Last known address
	Port     int       `yaml:"port,omitempty"`      // Protocol port (typically 8009)
	LastSeen time.Time `yaml:"last_seen,omitempty"` // Last discovery/connection time
}

// Preferences represents application-wide user preferences
type Preferences struct {
	AutoDiscover    bool        `yaml:"auto_discover"`              // Scan for receivers on startup
	DiscoverTimeout int         `yaml:"discover_timeout"`           // mDNS discovery timeout in seconds
	DefaultReceiver string      `yaml:"default_receiver,omitempty"` // Receiver id or nickname used when none is named
	Relay           *RelayPrefs `yaml:"relay,omitempty"`            // Event relay server preferences
}

// RelayPrefs configures the websocket event relay server
type RelayPrefs struct {
	ListenAddr string `yaml:"listen_addr"` // Address the relay binds to (e.g., "127.0.0.1:8010")
}

// NewRegistry creates a new Registry with default values
func NewRegistry() *Registry {
	return &Registry{
		Version:   1,
		Receivers: make(map[string]*Receiver),
		Preferences: &Preferences{
			AutoDiscover:    true,
			DiscoverTimeout: 10,
			Relay: &RelayPrefs{
				ListenAddr: "127.0.0.1:8010",
			},
		},
	}
}

// GetReceiver retrieves receiver metadata by id.
// Returns nil if the receiver is not in the registry.
func (r *Registry) GetReceiver(id string) *Receiver {
	return r.Receivers[id]
}

// EnsureReceiver ensures a receiver entry exists, creating a default one if
// needed, and returns it
func (r *Registry) EnsureReceiver(id string) *Receiver {
	if r.Receivers == nil {
		r.Receivers = make(map[string]*Receiver)
	}

	if receiver, exists := r.Receivers[id]; exists {
		return receiver
	}

	receiver := &Receiver{}
	r.Receivers[id] = receiver
	return receiver
}

// UpdateReceiverSeen records a fresh sighting of a receiver: its advertised
// details and when it was seen
func (r *Registry) UpdateReceiverSeen(id, name, model, ip string, port int) {
	receiver := r.EnsureReceiver(id)
	receiver.Name = name
	receiver.Model = model
	receiver.LastIP = ip
	receiver.Port = port
	receiver.LastSeen = time.Now()
}

// SetReceiverNickname sets a user-chosen nickname for a receiver
func (r *Registry) SetReceiverNickname(id, nickname string) {
	receiver := r.EnsureReceiver(id)
	receiver.Nickname = nickname
}

// FindReceiver resolves a receiver by id, nickname, or advertised name, in
// that order. Returns the id and entry, or empty id when nothing matches.
func (r *Registry) FindReceiver(key string) (string, *Receiver) {
	if receiver, ok := r.Receivers[key]; ok {
		return key, receiver
	}
	for id, receiver := range r.Receivers {
		if receiver.Nickname == key {
			return id, receiver
		}
	}
	for id, receiver := range r.Receivers {
		if receiver.Name == key {
			return id, receiver
		}
	}
	return "", nil
}

// DefaultReceiver resolves the preferred receiver from preferences.
// Returns empty id when no default is configured or it no longer exists.
func (r *Registry) DefaultReceiver() (string, *Receiver) {
	if r.Preferences == nil || r.Preferences.DefaultReceiver == "" {
		return "", nil
	}
	return r.FindReceiver(r.Preferences.DefaultReceiver)
}

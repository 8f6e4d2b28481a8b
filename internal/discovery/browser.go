package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/castctl/internal/listener"
	"github.com/muurk/castctl/internal/logging"
)

const (
	// DefaultBrowseInterval is how often the browser re-browses the network
	DefaultBrowseInterval = 15 * time.Second

	// DefaultExpiry is how long a device stays listed without a fresh
	// advertisement (three missed browse cycles)
	DefaultExpiry = 45 * time.Second
)

// EventType classifies browser events
type EventType int

const (
	// DeviceAdded means a receiver appeared that was not previously known
	DeviceAdded EventType = iota
	// DeviceUpdated means a known receiver re-advertised with new details
	DeviceUpdated
	// DeviceExpired means a receiver has not advertised within the expiry
	// window and was dropped
	DeviceExpired
)

// String returns a human-readable event type name
func (t EventType) String() string {
	switch t {
	case DeviceAdded:
		return "added"
	case DeviceUpdated:
		return "updated"
	case DeviceExpired:
		return "expired"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one change in the set of known receivers
type Event struct {
	Type   EventType
	Device *Device
}

// DeviceListener receives browser events
type DeviceListener interface {
	OnDeviceEvent(ev Event)
}

// DeviceListenerFunc adapts a function to the DeviceListener interface.
// Register the pointer so the registration can be removed later.
type DeviceListenerFunc func(ev Event)

// OnDeviceEvent implements DeviceListener
func (f *DeviceListenerFunc) OnDeviceEvent(ev Event) {
	(*f)(ev)
}

// Browser continuously watches the network for cast receivers. mDNS carries
// no reliable goodbye, so departure is inferred: a device that misses the
// expiry window since its last advertisement is reported as expired.
type Browser struct {
	// Interval is the cadence of browse cycles
	Interval time.Duration

	// Expiry is how long a device survives without a fresh advertisement
	Expiry time.Duration

	browse browseFunc

	mu      sync.Mutex
	devices map[string]*Device
	cancel  context.CancelFunc
	done    chan struct{}

	listeners *listener.Registry[DeviceListener, EventType]
}

// NewBrowser creates a stopped browser with default settings
func NewBrowser() *Browser {
	return &Browser{
		Interval:  DefaultBrowseInterval,
		Expiry:    DefaultExpiry,
		browse:    zeroconfBrowse,
		devices:   make(map[string]*Device),
		listeners: listener.NewRegistry[DeviceListener, EventType](),
	}
}

// AddListener registers a listener for browser events. With no types the
// listener receives every event.
func (b *Browser) AddListener(l DeviceListener, types ...EventType) bool {
	return b.listeners.Add(l, types...)
}

// RemoveListener removes a previously registered listener
func (b *Browser) RemoveListener(l DeviceListener) bool {
	return b.listeners.Remove(l)
}

// Start begins browsing. It returns an error if the browser is already
// running; the background loop runs until Stop or ctx cancellation.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return fmt.Errorf("browser is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})

	go b.run(ctx)
	return nil
}

// Stop halts browsing and waits for the background loop to exit. Known
// devices are retained; a later Start picks up where it left off.
func (b *Browser) Stop() {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Devices returns a snapshot of the currently known receivers
func (b *Browser) Devices() []*Device {
	b.mu.Lock()
	defer b.mu.Unlock()

	devices := make([]*Device, 0, len(b.devices))
	for _, d := range b.devices {
		copied := *d
		devices = append(devices, &copied)
	}
	return devices
}

// run drives browse cycles until ctx is cancelled
func (b *Browser) run(ctx context.Context) {
	defer close(b.done)

	for {
		b.browseOnce(ctx)
		b.expireStale()

		select {
		case <-ctx.Done():
			return
		case <-time.After(b.Interval / 2):
		}
	}
}

// browseOnce runs a single browse cycle bounded by the browse interval
func (b *Browser) browseOnce(ctx context.Context) {
	cycle, cancel := context.WithTimeout(ctx, b.Interval)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	drained := make(chan struct{})

	go func() {
		defer close(drained)
		for entry := range entries {
			if device := parseServiceEntry(entry); device != nil {
				b.upsert(device)
			}
		}
	}()

	if err := b.browse(cycle, entries); err != nil {
		logging.Warn("mDNS browse cycle failed", zap.Error(err))
		cancel()
	}

	<-cycle.Done()
	<-drained
}

// upsert records an advertisement, firing added/updated events
func (b *Browser) upsert(device *Device) {
	b.mu.Lock()
	prev, known := b.devices[device.ID]
	b.devices[device.ID] = device
	b.mu.Unlock()

	if !known {
		logging.Debug("Discovered receiver",
			zap.String("id", device.ID),
			zap.String("name", device.Name),
			zap.String("addr", device.Addr()),
		)
		b.fire(Event{Type: DeviceAdded, Device: device})
		return
	}

	if prev.IP != device.IP || prev.Port != device.Port || prev.Name != device.Name {
		b.fire(Event{Type: DeviceUpdated, Device: device})
	}
}

// expireStale drops devices that missed the expiry window
func (b *Browser) expireStale() {
	cutoff := time.Now().Add(-b.Expiry)

	b.mu.Lock()
	var expired []*Device
	for id, device := range b.devices {
		if device.LastSeen.Before(cutoff) {
			delete(b.devices, id)
			expired = append(expired, device)
		}
	}
	b.mu.Unlock()

	for _, device := range expired {
		logging.Debug("Receiver expired",
			zap.String("id", device.ID),
			zap.String("name", device.Name),
		)
		b.fire(Event{Type: DeviceExpired, Device: device})
	}
}

func (b *Browser) fire(ev Event) {
	b.listeners.Fire(ev.Type, func(l DeviceListener) {
		l.OnDeviceEvent(ev)
	})
}

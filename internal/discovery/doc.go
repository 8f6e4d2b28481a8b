// Package discovery finds cast receivers on the local network via mDNS.
//
// Receivers advertise a _googlecast._tcp service whose TXT records carry the
// device id ("id"), friendly name ("fn"), and model ("md").
//
// # One-shot scanning
//
// Scanner collects advertisements for a bounded window and returns the
// deduplicated device list. FindByName returns as soon as a receiver with a
// matching friendly name or id appears.
//
// # Continuous browsing
//
// Browser watches the network in the background and reports changes to
// registered listeners as added, updated, and expired events. mDNS offers no
// reliable goodbye message, so a device is considered gone once it misses
// the expiry window without re-advertising.
package discovery

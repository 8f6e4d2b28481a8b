// Package tui implements the interactive terminal monitor: a discovery
// screen listing cast receivers on the network, and a live monitor screen
// showing connection state, receiver and media status, and a scrolling
// event log fed by the protocol channel's listeners.
package tui

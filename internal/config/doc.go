// Package config manages the persistent user configuration file.
//
// The configuration is a single YAML file in the platform's standard config
// directory ($XDG_CONFIG_HOME/castctl on Linux). It stores the receivers
// seen on the network, keyed by their advertised id, along with user-chosen
// nicknames and application preferences such as the default receiver and
// the event relay listen address.
//
// Saves are atomic (write to a temporary file, then rename) so a crash
// mid-save never corrupts the file. The registry loads once per process;
// ReloadRegistry discards in-memory state and re-reads the file.
package config

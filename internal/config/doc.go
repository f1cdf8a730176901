// Package config manages the hidroctl user configuration file.
//
// The file is YAML, stored in the platform configuration directory
// (~/.config/hidroctl/config.yaml on Linux and macOS). It holds client-side
// metadata only: controller nicknames, last-seen addresses, zone and tank
// labels, and application preferences. Authoritative device state always
// comes from the controller itself.
//
// Saves are atomic (write to a temp file, then rename) so a crash can never
// leave a half-written config behind.
package config

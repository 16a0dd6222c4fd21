// Package config provides configuration loading, validation, and hot
// reloading for Ganymede.
//
// Configuration is loaded from a YAML file, with defaults applied to
// absent keys and environment variables (GANYMEDE_SECTION_FIELD) taking
// final precedence. The gateway behavior toggles are additionally
// hot-reloadable at runtime through Watcher, which re-reads the file on
// change and applies the gateway section to a shared Runtime value.
package config

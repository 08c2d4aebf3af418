// Package config loads, normalizes, and validates kctvfetch configuration.
//
// Values come from TOML (explicit path, ~/.config/kctvfetch/config.toml, or
// ./kctvfetch.toml), are overlaid with KCTVFETCH_* environment variables, then
// normalized and validated. The Site section is the selector table used to walk
// the archive pages; it is handed to the resolver by value.
package config

// Package config loads and watches the monitor configuration file.
//
// Load(path) reads the YAML file, applies defaults (5s window, port 8080,
// 10m retention, 200 annotations), then validates URLs, enums and ranges.
// Default() is the configuration used when no file is given.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. Only log_level and alert rules are
// expected to take effect on reload; everything else needs a restart.
package config

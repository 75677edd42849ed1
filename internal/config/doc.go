// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.taskhub/taskhub.toml or OS-specific config directory)
// 3. Project config file (taskhub.toml or .taskhub.toml in the current directory)
// 4. Environment variables (TASKHUB_*)
// 5. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - $TASKHUB_CONFIG when set
// - ~/.taskhub/taskhub.toml (preferred)
// - Windows: %APPDATA%\taskhub\taskhub.toml
// - macOS: ~/Library/Application Support/taskhub/taskhub.toml
// - Linux/BSD: $XDG_CONFIG_HOME/taskhub/taskhub.toml or ~/.config/taskhub/taskhub.toml
//
// Named filters from both files are merged; a project filter replaces a user
// filter of the same name.
package config

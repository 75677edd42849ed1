package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config file names.
const (
	ConfigFileName       = "taskhub.toml"
	HiddenConfigFileName = ".taskhub.toml"
)

// findProjectConfigFile looks for a config file in the current directory.
func findProjectConfigFile() string {
	for _, name := range []string{ConfigFileName, HiddenConfigFileName} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// expandPath expands $VAR references and a leading ~ in config paths. A ~
// followed by anything but a path separator is left alone.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, "~"+string(os.PathSeparator)) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[1:])
}

// findUserConfigFile looks for a user-level config file. TASKHUB_CONFIG
// wins when set; otherwise ~/.taskhub/taskhub.toml is checked first, then
// the OS-specific config directory.
func findUserConfigFile() string {
	if explicit := os.Getenv("TASKHUB_CONFIG"); explicit != "" {
		path := expandPath(explicit)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".taskhub", ConfigFileName)
		if _, err := os.Stat(userConfigPath); err == nil {
			return userConfigPath
		}
	}

	if cfgDir := osUserConfigDir(); cfgDir != "" {
		userConfigPath := filepath.Join(cfgDir, "taskhub", ConfigFileName)
		if _, err := os.Stat(userConfigPath); err == nil {
			return userConfigPath
		}
	}

	return ""
}

// osUserConfigDir returns the OS-specific user config directory.
// Returns empty string if the directory cannot be determined.
func osUserConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return appdata
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	case "linux", "openbsd", "freebsd", "netbsd":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, ".config")
		}
	}
	return ""
}

// GetConfigFile returns the highest-precedence config file that was read,
// or an empty string when only defaults, environment and flags applied.
func (cws *ConfigWithSources) GetConfigFile() string {
	if len(cws.Files) == 0 {
		return ""
	}
	return cws.Files[len(cws.Files)-1]
}

// Source returns where field's value came from.
func (cws *ConfigWithSources) Source(field string) ConfigSource {
	if src, ok := cws.Sources[field]; ok {
		return src
	}
	return SourceDefault
}

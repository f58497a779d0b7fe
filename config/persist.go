package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/spuro/spuro/errors"
	"github.com/spuro/spuro/logger"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before
// modifying a config file.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Logger.Warnw("failed to delete old config backup",
			logger.FieldPath, back3, logger.FieldError, err)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}
	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "spuro.toml")
}

// loadOrInitializeUserConfig reads the user config file as a raw TOML map,
// or starts an empty one.
func loadOrInitializeUserConfig() (map[string]interface{}, string, error) {
	configPath := UserConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	var raw map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse user config")
		}
	} else {
		raw = make(map[string]interface{})
	}
	return raw, configPath, nil
}

// saveUserConfig writes the raw config map back with backup rotation.
func saveUserConfig(raw map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write user config")
	}
	return nil
}

// UpdateSetting persists one section.key value into the user config file.
// The cached configuration is invalidated so the next Load sees the change.
func UpdateSetting(section, key string, value interface{}) error {
	raw, configPath, err := loadOrInitializeUserConfig()
	if err != nil {
		return err
	}

	var sec map[string]interface{}
	if existing, ok := raw[section].(map[string]interface{}); ok {
		sec = existing
	} else {
		sec = make(map[string]interface{})
	}
	sec[key] = value
	raw[section] = sec

	if err := saveUserConfig(raw, configPath); err != nil {
		return err
	}
	Reset()
	return nil
}

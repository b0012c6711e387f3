// (c) Copyright IBM Corp. 2024

package dbwrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxEnvValueSize is the maximum size of the value of an environment variable.
const MaxEnvValueSize = 32 * 1024

// Environment variables read by NewFactory
const (
	EnvDisable    = "DBWRAP_DISABLE"
	EnvConfigPath = "DBWRAP_CONFIG_PATH"
)

// ResourceKind names one of the five interceptable resource kinds
type ResourceKind string

// Valid resource kinds
const (
	KindConnection  ResourceKind = "connection"
	KindTransaction ResourceKind = "transaction"
	KindCommand     ResourceKind = "command"
	KindParameters  ResourceKind = "parameters"
	KindCursor      ResourceKind = "cursor"
)

var allKinds = []ResourceKind{KindConnection, KindTransaction, KindCommand, KindParameters, KindCursor}

// disabledKinds is the set of resource kinds whose interceptors are ignored
type disabledKinds map[ResourceKind]bool

func (d disabledKinds) all() bool {
	for _, k := range allKinds {
		if !d[k] {
			return false
		}
	}

	return true
}

// readEnvConfig collects the disabled resource kinds from DBWRAP_DISABLE and
// the config file referenced by DBWRAP_CONFIG_PATH
func readEnvConfig() disabledKinds {
	disabled := make(disabledKinds)

	if path, ok := lookupValidatedEnv(EnvConfigPath); ok && path != "" {
		if err := parseConfigFile(path, disabled); err != nil {
			defaultLogger.Warn("failed to read ", EnvConfigPath, ": ", err)
		}
	}

	if value, ok := lookupValidatedEnv(EnvDisable); ok {
		parseDisable(value, disabled)
	}

	return disabled
}

// parseDisable processes the DBWRAP_DISABLE environment variable value. A
// boolean value switches interception off (or back on) for every kind,
// otherwise the value is a comma-separated list of resource kinds:
//
//	DBWRAP_DISABLE := true | false | kind1[,kind2,...]
func parseDisable(value string, disabled disabledKinds) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	if b, err := strconv.ParseBool(value); err == nil {
		for _, k := range allKinds {
			disabled[k] = b
		}

		return
	}

	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}

		kind := ResourceKind(item)
		if !isKnownKind(kind) {
			defaultLogger.Warn("ignoring unknown resource kind in ", EnvDisable, ": ", item)
			continue
		}

		disabled[kind] = true
	}
}

func isKnownKind(kind ResourceKind) bool {
	for _, k := range allKinds {
		if k == kind {
			return true
		}
	}

	return false
}

// parseConfigFile reads the YAML configuration file at the given path and
// marks the listed resource kinds as disabled.
//
// The YAML file must follow this format:
//
//	interception:
//	  disable:
//	    - cursor: true
//	    - parameters: true
func parseConfigFile(path string, disabled disabledKinds) error {
	absPath, err := validateFile(path)
	if err != nil {
		return fmt.Errorf("config file validation failed for %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	type Config struct {
		Interception struct {
			Disable []map[string]bool `yaml:"disable"`
		} `yaml:"interception"`
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	for _, disableMap := range config.Interception.Disable {
		for name, off := range disableMap {
			kind := ResourceKind(strings.ToLower(name))
			if !isKnownKind(kind) {
				defaultLogger.Warn("ignoring unknown resource kind in ", absPath, ": ", name)
				continue
			}

			if off {
				disabled[kind] = true
			}
		}
	}

	return nil
}

// validateFile ensures the given config file path exists, is a regular file
// and is not unreasonably large
func validateFile(path string) (string, error) {
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve config file path: %w", err)
	}

	absPath, err := filepath.Abs(realPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	fileInfo, err := os.Stat(absPath)
	if err != nil {
		return absPath, fmt.Errorf("failed to access config file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return absPath, fmt.Errorf("config path is not a regular file: %s", absPath)
	}

	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return absPath, fmt.Errorf("config file too large: %d bytes (max allowed: %d bytes)",
			fileInfo.Size(), maxFileSize)
	}

	return absPath, nil
}

// lookupValidatedEnv retrieves the value of the environment variable named by key,
// ignoring values that exceed MaxEnvValueSize
func lookupValidatedEnv(key string) (string, bool) {
	envVal, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}

	if len(envVal) > MaxEnvValueSize {
		defaultLogger.Error(fmt.Errorf("value of %q exceeds safe limit (%d bytes)", key, MaxEnvValueSize))
		return "", false
	}

	return envVal, true
}

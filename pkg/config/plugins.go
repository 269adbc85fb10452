package config

import (
	"strings"

	"github.com/abdala/minicon/pkg/errors"
)

// Plugin names known to the engine.
const (
	PluginLink    = "link"
	PluginWhich   = "which"
	PluginFolder  = "folder"
	PluginLdd     = "ldd"
	PluginScripts = "scripts"
	PluginStrace  = "strace"
)

// KnownPlugins lists every plugin in pipeline order.
var KnownPlugins = []string{
	PluginLink,
	PluginWhich,
	PluginFolder,
	PluginLdd,
	PluginScripts,
	PluginStrace,
}

// PluginConfig maps an active plugin name to its parameter values.
type PluginConfig map[string]map[string]string

// DefaultPlugins returns the default activation set. The strace analyzer is
// opt-in; everything else is always active.
func DefaultPlugins() PluginConfig {
	pc := make(PluginConfig)
	for _, name := range KnownPlugins {
		if name != PluginStrace {
			pc[name] = make(map[string]string)
		}
	}
	return pc
}

// Activate parses a flat activation string with the grammar
// name(:k=v)*(,name(:k=v)*)* and merges it into the set. Re-activating a
// plugin merges parameters; later values win.
func (pc PluginConfig) Activate(spec string) error {
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		name := parts[0]
		if !isKnownPlugin(name) {
			return errors.Newf(errors.ErrConfigValid, "unknown plugin %q", name)
		}
		params := pc[name]
		if params == nil {
			params = make(map[string]string)
			pc[name] = params
		}
		for _, kv := range parts[1:] {
			key, value, found := strings.Cut(kv, "=")
			if !found || key == "" {
				return errors.Newf(errors.ErrConfigValid, "malformed plugin parameter %q in %q", kv, entry)
			}
			params[key] = value
		}
	}
	return nil
}

// ActivateAll turns on every known plugin with default parameters.
func (pc PluginConfig) ActivateAll() {
	for _, name := range KnownPlugins {
		if pc[name] == nil {
			pc[name] = make(map[string]string)
		}
	}
}

// Active reports whether the named plugin is activated.
func (pc PluginConfig) Active(name string) bool {
	_, ok := pc[name]
	return ok
}

// Deactivate removes a plugin from the active set. The engine uses this
// when an optional external tool is missing.
func (pc PluginConfig) Deactivate(name string) {
	delete(pc, name)
}

// Param returns the named parameter of a plugin, or fallback when unset.
func (pc PluginConfig) Param(plugin, key, fallback string) string {
	params, ok := pc[plugin]
	if !ok {
		return fallback
	}
	value, ok := params[key]
	if !ok || value == "" {
		return fallback
	}
	return value
}

// BoolParam interprets a plugin parameter as a boolean.
func (pc PluginConfig) BoolParam(plugin, key string, fallback bool) bool {
	value := pc.Param(plugin, key, "")
	switch strings.ToLower(value) {
	case "":
		return fallback
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}

func isKnownPlugin(name string) bool {
	for _, known := range KnownPlugins {
		if name == known {
			return true
		}
	}
	return false
}

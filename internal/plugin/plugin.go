// Package plugin loads extra shell builtins from Go plugins.
package plugin

import (
	"fmt"
	"plugin"
)

// Plugin is a builtin provided by a shared object. The object must export a
// variable named Plugin whose address implements this interface.
type Plugin interface {
	Name() string
	Execute(args []string) error
}

// Load opens the shared object at path and returns its exported Plugin.
func Load(path string) (Plugin, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin: %w", err)
	}

	symPlugin, err := p.Lookup("Plugin")
	if err != nil {
		return nil, fmt.Errorf("plugin does not export 'Plugin' symbol: %w", err)
	}

	plug, ok := symPlugin.(Plugin)
	if !ok {
		return nil, fmt.Errorf("plugin does not implement Plugin interface")
	}

	return plug, nil
}

// Registry maps builtin names to plugins.
type Registry map[string]Plugin

// Add registers p under its name. Names in reserved cannot be taken.
func (r Registry) Add(p Plugin, reserved map[string]bool) error {
	name := p.Name()
	switch {
	case name == "":
		return fmt.Errorf("plugin has an empty name")
	case reserved[name]:
		return fmt.Errorf("plugin %q shadows a builtin", name)
	}
	if _, ok := r[name]; ok {
		return fmt.Errorf("plugin %q registered twice", name)
	}
	r[name] = p
	return nil
}

// LoadAll opens every path and registers the plugins it exports.
func LoadAll(paths []string, reserved map[string]bool) (Registry, error) {
	reg := make(Registry, len(paths))
	for _, path := range paths {
		p, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := reg.Add(p, reserved); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return reg, nil
}

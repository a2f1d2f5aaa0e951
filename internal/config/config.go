// Package config implements layered resolution of plugin configuration.
//
// A Store answers (section, key) lookups by consulting, in decreasing
// precedence: explicitly set command-line options, INI files loaded at
// runtime (latest file wins), the built-in defaults, and finally a GLOBAL
// section fallback before the caller-supplied default. Loading a file never
// mutates an existing layer; it stacks a new one on top.
package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// GlobalSection is consulted as a last resort for keys missing from their
// own section.
const GlobalSection = "global"

// builtinDefaults is the lowest-precedence layer, always present.
const builtinDefaults = `
[GLOBAL]
logfile =

[snmp]
port = 161
community = public
protocol = 1
timeout = 5

[ssh]
port = 22
user = root

[winrm]
port = 5985

[livestatus]
socket = /var/run/livestatus/live
`

// layer is one source of configuration, section -> key -> value, with
// sections and keys lowercased at construction time.
type layer map[string]map[string]string

// Store holds the configuration layers for one plugin invocation.
type Store struct {
	// layers[0] is the built-in defaults; later entries take precedence.
	layers []layer
	// options holds command-line option values that were explicitly set.
	options map[string]string
}

// New returns a Store seeded with the built-in defaults.
func New() *Store {
	base, err := parseINI([]byte(builtinDefaults), "builtin defaults")
	if err != nil {
		// The built-in text is a compile-time constant; failing to parse
		// it is a programming error.
		panic(err)
	}
	return &Store{
		layers:  []layer{base},
		options: make(map[string]string),
	}
}

// LoadFile parses an INI file and stacks it above all previously loaded
// layers. An unreadable or unparsable file is an error; callers treat it as
// fatal because the operator asked for that file explicitly.
func (s *Store) LoadFile(path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	s.layers = append(s.layers, fromINI(f))
	return nil
}

// SetOption records an explicitly supplied command-line option value.
// Option values outrank every file layer.
func (s *Store) SetOption(name, value string) {
	s.options[strings.ToLower(name)] = value
}

// Option returns the value of an explicitly set command-line option.
func (s *Store) Option(name string) (string, bool) {
	v, ok := s.options[strings.ToLower(name)]
	return v, ok
}

// Resolve looks up (section, key) across all layers, top-down, falling back
// to the GLOBAL section and finally to def. Section and key matching is
// case-insensitive.
func (s *Store) Resolve(section, key, def string) string {
	section = strings.ToLower(section)
	key = strings.ToLower(key)

	if v, ok := s.lookup(section, key); ok {
		return v
	}
	// GLOBAL fallback is an explicit final step, not an INI library
	// behavior, so precedence stays predictable.
	if section != GlobalSection {
		if v, ok := s.lookup(GlobalSection, key); ok {
			return v
		}
	}
	return def
}

// ResolveOption is Resolve with a command-line option override: if the named
// option was explicitly set it wins unconditionally, even over file values.
func (s *Store) ResolveOption(option, section, key, def string) string {
	if v, ok := s.Option(option); ok {
		return v
	}
	return s.Resolve(section, key, def)
}

// lookup walks the layers from highest precedence to lowest.
func (s *Store) lookup(section, key string) (string, bool) {
	for i := len(s.layers) - 1; i >= 0; i-- {
		if sec, ok := s.layers[i][section]; ok {
			if v, ok := sec[key]; ok {
				return v, true
			}
		}
	}
	return "", false
}

// parseINI parses INI text into a layer.
func parseINI(data []byte, name string) (layer, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return fromINI(f), nil
}

// fromINI lowercases sections and keys into a lookup layer. The ini default
// section (keys above any [section] header) is folded into GLOBAL.
func fromINI(f *ini.File) layer {
	l := make(layer)
	for _, sec := range f.Sections() {
		name := strings.ToLower(sec.Name())
		if name == strings.ToLower(ini.DefaultSection) {
			name = GlobalSection
		}
		if len(sec.Keys()) == 0 {
			continue
		}
		m := make(map[string]string, len(sec.Keys()))
		for _, k := range sec.Keys() {
			m[strings.ToLower(k.Name())] = k.Value()
		}
		// Merge rather than replace: GLOBAL can appear both as the ini
		// default section and as an explicit [GLOBAL] header.
		if existing, ok := l[name]; ok {
			for k, v := range m {
				existing[k] = v
			}
			continue
		}
		l[name] = m
	}
	return l
}

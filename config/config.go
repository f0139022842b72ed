// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config reads layered configuration sources into typed structs.
package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Map is the key value structure sources apply themselves onto. Nested
// sections are nested Maps.
type Map map[string]any

// set stores value under a dotted path, creating sections as needed.
func (m Map) set(path []string, value any) {
	if len(path) == 1 {
		m[path[0]] = value
		return
	}
	sub, ok := m[path[0]].(Map)
	if !ok {
		sub = make(Map)
		m[path[0]] = sub
	}
	sub.set(path[1:], value)
}

// Source is anything that can serialize itself onto a Map.
type Source interface {
	Apply(Map) error
}

// Manager holds merged configuration ready to unmarshal.
type Manager struct {
	store Map
}

// Read applies the sources in order onto one store. Later sources
// override keys set by earlier ones.
func Read(srcs ...Source) (*Manager, error) {
	store := make(Map)
	for _, src := range srcs {
		if err := src.Apply(store); err != nil {
			return nil, err
		}
	}
	return &Manager{store: store}, nil
}

// Unmarshal decodes the merged store into v, guided by `config` struct
// tags.
func (m *Manager) Unmarshal(v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(m.store); err != nil {
		return UnmarshalError{Cause: err}
	}
	return nil
}

// UnmarshalError occurs when the merged store does not fit the target
// type.
type UnmarshalError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e UnmarshalError) Error() string {
	return fmt.Sprintf("config: failed to unmarshal: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e UnmarshalError) Unwrap() error {
	return e.Cause
}

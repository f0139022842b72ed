// Copyright (c) 2026 Substrate Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Yaml is a Source whose underlying format is YAML.
type Yaml struct {
	r io.Reader
}

// FromYaml returns a Source applying values parsed from r.
func FromYaml(r io.Reader) Yaml {
	return Yaml{r: r}
}

// Apply implements the Source interface.
func (src Yaml) Apply(store Map) error {
	b, err := io.ReadAll(src.r)
	if err != nil {
		return err
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(b, &parsed); err != nil {
		return InvalidYamlError{Cause: err}
	}
	mergeInto(store, parsed)
	return nil
}

// InvalidYamlError occurs if a YAML source does not contain valid YAML.
type InvalidYamlError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e InvalidYamlError) Error() string {
	return fmt.Sprintf("config: invalid yaml: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e InvalidYamlError) Unwrap() error {
	return e.Cause
}

func mergeInto(store Map, values map[string]any) {
	for key, value := range values {
		if nested, ok := value.(map[string]any); ok {
			sub, ok := store[key].(Map)
			if !ok {
				sub = make(Map)
				store[key] = sub
			}
			mergeInto(sub, nested)
			continue
		}
		store[key] = value
	}
}

// Env is a Source whose values come from process environment variables.
// A variable PREFIX_SECTION_KEY=v maps to section.key with the prefix
// stripped and names lowercased.
type Env struct {
	prefix  string
	environ func() []string
}

// FromEnv returns a Source reading variables carrying the given prefix.
func FromEnv(prefix string) Env {
	return Env{
		prefix:  prefix,
		environ: os.Environ,
	}
}

// Apply implements the Source interface.
func (src Env) Apply(store Map) error {
	prefix := strings.ToUpper(src.prefix)
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	for _, kv := range src.environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		name = strings.TrimPrefix(name, prefix)
		if name == "" {
			continue
		}
		path := strings.Split(strings.ToLower(name), "_")
		store.set(path, value)
	}
	return nil
}

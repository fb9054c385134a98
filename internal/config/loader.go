package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// varPattern matches ${NAME} and ${NAME:-fallback}. The fallback may
// contain escaped characters but not an unescaped closing brace.
var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML file at path and decodes it into a Config.
// Environment references in the raw bytes are resolved before decoding,
// so a value like "${SLACK_BOT_TOKEN}" never reaches the parser.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	resolved, err := resolveEnvRefs(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(resolved, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}

// resolveEnvRefs substitutes every ${NAME} and ${NAME:-fallback} in raw.
// A reference with no environment value and no fallback is an error; all
// such references are collected so one pass reports every missing name.
func resolveEnvRefs(raw []byte) ([]byte, error) {
	matches := varPattern.FindAllSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return raw, nil
	}

	var (
		out     []byte
		missing []error
		last    int
	)
	for _, m := range matches {
		out = append(out, raw[last:m[0]]...)
		last = m[1]

		name := string(raw[m[2]:m[3]])
		if value, ok := os.LookupEnv(name); ok {
			out = append(out, value...)
			continue
		}
		if m[4] >= 0 { // fallback present, possibly empty
			out = append(out, raw[m[4]:m[5]]...)
			continue
		}

		missing = append(missing, fmt.Errorf("unresolved variable: %s", name))
		out = append(out, raw[m[0]:m[1]]...)
	}
	out = append(out, raw[last:]...)

	return out, errors.Join(missing...)
}

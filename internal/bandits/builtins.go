package bandits

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed builtins.yaml
var builtinsYAML []byte

type builtinIdentifier struct {
	Type          string         `yaml:"type"`
	Configuration map[string]any `yaml:"configuration"`
}

type builtinBandit struct {
	UUID         string              `yaml:"uuid"`
	Name         string              `yaml:"name"`
	Description  string              `yaml:"description"`
	Fingerprints []string            `yaml:"fingerprints"`
	Identifiers  []builtinIdentifier `yaml:"identifiers"`
}

// Builtins returns the definitions of the bandits shipped with the binary.
func Builtins() ([]Definition, error) {
	return parseDefinitions(builtinsYAML)
}

// LoadFile reads custom bandit definitions in the built-in YAML format.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defs, err := parseDefinitions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range defs {
		defs[i].IsCustom = true
	}
	return defs, nil
}

func parseDefinitions(data []byte) ([]Definition, error) {
	var raw []builtinBandit
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse bandit definitions: %w", err)
	}
	out := make([]Definition, 0, len(raw))
	for _, b := range raw {
		// definitions without a uuid get a stable one derived from the name
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("airguard/bandit/"+b.Name))
		if b.UUID != "" {
			parsed, err := uuid.Parse(b.UUID)
			if err != nil {
				return nil, fmt.Errorf("bandit %q: uuid: %w", b.Name, err)
			}
			id = parsed
		}
		d := Definition{
			UUID:         id,
			Name:         b.Name,
			Description:  b.Description,
			Fingerprints: b.Fingerprints,
		}
		for _, i := range b.Identifiers {
			d.Identifiers = append(d.Identifiers, IdentifierDefinition{Type: i.Type, Configuration: i.Configuration})
		}
		out = append(out, d)
	}
	return out, nil
}

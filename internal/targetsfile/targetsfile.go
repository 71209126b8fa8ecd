// Package targetsfile parses the YAML list of provider targets an
// operator hands to the CLI entrypoint.
package targetsfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/mirror-sync/internal/model"
)

// entry mirrors one YAML list item. Scope accepts either a single string
// ("acme") or a list ("[acme, platform]") since Azure DevOps scopes need
// two segments and GitLab groups can nest arbitrarily deep.
type entry struct {
	Provider string    `yaml:"provider"`
	Host     string    `yaml:"host"`
	Scope    yaml.Node `yaml:"scope"`
}

// Load reads and parses a targets file into provider-agnostic targets.
func Load(path string) ([]model.ProviderTarget, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}

	var entries []entry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse targets file: %w", err)
	}

	targets := make([]model.ProviderTarget, 0, len(entries))
	for i, e := range entries {
		kind := model.ProviderKind(e.Provider)
		if !kind.Valid() {
			return nil, fmt.Errorf("target %d: unknown provider %q", i, e.Provider)
		}

		segments, err := decodeScope(e.Scope)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}
		scope, err := model.NewProviderScope(segments...)
		if err != nil {
			return nil, fmt.Errorf("target %d: %w", i, err)
		}

		targets = append(targets, model.ProviderTarget{
			Kind:  kind,
			Scope: scope,
			Host:  e.Host,
		})
	}
	return targets, nil
}

// decodeScope accepts a bare scalar or a sequence node for the "scope"
// field, since most targets name a single org/group but Azure DevOps
// needs an {organization, project} pair.
func decodeScope(node yaml.Node) ([]string, error) {
	switch node.Kind {
	case 0:
		return nil, fmt.Errorf("scope is required")
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return nil, fmt.Errorf("decode scope: %w", err)
		}
		return []string{s}, nil
	case yaml.SequenceNode:
		var segs []string
		if err := node.Decode(&segs); err != nil {
			return nil, fmt.Errorf("decode scope: %w", err)
		}
		return segs, nil
	default:
		return nil, fmt.Errorf("scope must be a string or list of strings")
	}
}

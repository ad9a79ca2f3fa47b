package schedule

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/cheaphours/core/model"
)

// RulesFile is the layout of a rules seed file.
type RulesFile struct {
	Rules []model.RulePatch `json:"rules" yaml:"rules"`
}

// LoadRules reads rules from a JSON or YAML file.
func LoadRules(path string) ([]model.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeRules(f, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// DecodeRules decodes rules from r in the given format and validates each.
func DecodeRules(r io.Reader, format string) ([]model.Rule, error) {
	var file RulesFile
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&file); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	rules := make([]model.Rule, 0, len(file.Rules))
	for i, p := range file.Rules {
		r := model.NewRule(p)
		r.SetDefaults()
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

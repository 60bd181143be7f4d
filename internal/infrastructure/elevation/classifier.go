package elevation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/deskgate/assets"
	"github.com/doeshing/deskgate/internal/domain"
	"github.com/doeshing/deskgate/internal/pkg/filesystem"
	"github.com/doeshing/deskgate/internal/ports"
)

// Classifier implements ports.ElevationClassifier with ordered keyword rules.
// It is a heuristic for deciding when to prompt, not a permission model: a
// script it misses simply runs unelevated and fails on its own.
type Classifier struct {
	patterns []compiledRule
}

type compiledRule struct {
	re   *regexp.Regexp
	rule Rule
}

// Rule describes a regex-based elevation trigger.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules []Rule `yaml:"elevation_rules"`
}

// NewClassifier loads rules from path, falling back to the embedded defaults
// when the file is missing or empty.
func NewClassifier(path string) (*Classifier, error) {
	rules, err := loadRules(path)
	if err != nil {
		return nil, err
	}
	return compile(rules)
}

func compile(rules []Rule) (*Classifier, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("elevation rule %s: %w", rule.Name, err)
		}
		compiled = append(compiled, compiledRule{re: re, rule: rule})
	}
	return &Classifier{patterns: compiled}, nil
}

// Classify implements ports.ElevationClassifier.
func (c *Classifier) Classify(text string) domain.ElevationAssessment {
	var assessment domain.ElevationAssessment
	if c == nil {
		return assessment
	}
	for _, pattern := range c.patterns {
		if pattern.re.MatchString(text) {
			assessment.Required = true
			assessment.Reasons = append(assessment.Reasons, pattern.rule.Message)
			assessment.MatchedRules = append(assessment.MatchedRules, pattern.rule.Name)
		}
	}
	return assessment
}

// RuleCount returns the number of loaded rules.
func (c *Classifier) RuleCount() int {
	return len(c.patterns)
}

func loadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(expandPath(path))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		data = assets.DefaultElevationYAML
	}
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse elevation rules: %w", err)
	}
	if len(file.Rules) == 0 {
		return defaultRules()
	}
	return file.Rules, nil
}

func defaultRules() ([]Rule, error) {
	var file RulesFile
	if err := yaml.Unmarshal(assets.DefaultElevationYAML, &file); err != nil {
		return nil, fmt.Errorf("parse embedded elevation rules: %w", err)
	}
	return file.Rules, nil
}

func expandPath(path string) string {
	if path == "" {
		return filepath.Join(filesystem.UserHomeDir(), ".deskgate", "elevation.yaml")
	}
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Join(filesystem.UserHomeDir(), path)
}

var _ ports.ElevationClassifier = (*Classifier)(nil)

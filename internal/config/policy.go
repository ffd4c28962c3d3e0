package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/prosecheck/internal/checker"
	"github.com/dgallion1/prosecheck/internal/linearize"
)

// PolicyFile is the YAML document named by PROSECHECK_POLICY_FILE.
//
//	placeholder: X
//	tags:
//	  heading: verbatim
//	  reference: substitute
//	locale: en-GB
//	disabled_rules: [WHITESPACE_RULE]
//	allowed_words: [goldmark, msgpack]
type PolicyFile struct {
	Placeholder       string            `yaml:"placeholder"`
	Tags              map[string]string `yaml:"tags"`
	Locale            string            `yaml:"locale"`
	EnabledCategories []string          `yaml:"enabled_categories"`
	DisabledRules     []string          `yaml:"disabled_rules"`
	AllowedWords      []string          `yaml:"allowed_words"`
}

// Policy is everything a check cycle needs besides the checker transport.
type Policy struct {
	Linearize    linearize.Policy
	Options      checker.Options
	AllowedWords []string
}

// DefaultPolicy uses the default linearization table and locale.
func DefaultPolicy(locale string) Policy {
	return Policy{
		Linearize: linearize.DefaultPolicy(),
		Options:   checker.Options{Locale: locale},
	}
}

// LoadPolicy returns DefaultPolicy(c.CheckerLocale) overridden by the policy
// file, if one is configured.
func (c Config) LoadPolicy() (Policy, error) {
	if c.PolicyFile == "" {
		return DefaultPolicy(c.CheckerLocale), nil
	}
	return LoadPolicyFile(c.PolicyFile, c.CheckerLocale)
}

// LoadPolicyFile reads a YAML policy file. Unknown tags or actions are
// errors; a locale in the file wins over the given default.
func LoadPolicyFile(path, locale string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, err
	}

	var f PolicyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	lp, err := linearize.PolicyFromMap(f.Tags, f.Placeholder)
	if err != nil {
		return Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	if f.Locale != "" {
		locale = f.Locale
	}
	return Policy{
		Linearize: lp,
		Options: checker.Options{
			Locale:            locale,
			EnabledCategories: f.EnabledCategories,
			DisabledRules:     f.DisabledRules,
		},
		AllowedWords: f.AllowedWords,
	}, nil
}

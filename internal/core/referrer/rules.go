// Package referrer classifies a referring URL into a marketing source and medium
// using an ordered table of rule groups loaded from YAML
package referrer

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embedded []byte

type rawSource struct {
	Source  string `yaml:"source"`
	Pattern string `yaml:"pattern"`
}

type rawGroup struct {
	Medium   string      `yaml:"medium"`
	Optional bool        `yaml:"optional"`
	Sources  []rawSource `yaml:"sources"`
}

type rawTable struct {
	Groups []rawGroup `yaml:"groups"`
}

// Rule is one compiled source pattern
type Rule struct {
	Source  string
	Pattern *regexp.Regexp
}

// Group is an ordered list of rules sharing a medium
type Group struct {
	Medium   string
	Optional bool
	Rules    []Rule
}

// Table is the compiled, ordered rule table
type Table struct {
	Groups []Group
}

// LoadOptions selects the table source and optional groups
type LoadOptions struct {
	// File overrides the embedded table when set
	File string
	// Enable lists optional group mediums to keep, e.g. "ai"
	Enable []string
}

// Load compiles the embedded table, or opt.File when set
func Load(opt LoadOptions) (*Table, error) {
	data := embedded
	if opt.File != "" {
		b, err := os.ReadFile(opt.File)
		if err != nil {
			return nil, fmt.Errorf("referrer: read %s: %w", opt.File, err)
		}
		data = b
	}
	return Parse(data, opt.Enable...)
}

// Default returns the embedded table with no optional groups
// it panics on a broken embedded file, which is a build defect
func Default() *Table {
	t, err := Parse(embedded)
	if err != nil {
		panic(err)
	}
	return t
}

// Parse compiles a YAML rule table, keeping optional groups only when enabled
func Parse(data []byte, enable ...string) (*Table, error) {
	var raw rawTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("referrer: parse rules: %w", err)
	}
	if len(raw.Groups) == 0 {
		return nil, fmt.Errorf("referrer: rules table has no groups")
	}

	on := make(map[string]bool, len(enable))
	for _, m := range enable {
		on[strings.ToLower(strings.TrimSpace(m))] = true
	}

	t := &Table{Groups: make([]Group, 0, len(raw.Groups))}
	for gi, rg := range raw.Groups {
		medium := strings.TrimSpace(rg.Medium)
		if medium == "" {
			return nil, fmt.Errorf("referrer: group %d has no medium", gi)
		}
		if rg.Optional && !on[strings.ToLower(medium)] {
			continue
		}
		g := Group{Medium: medium, Optional: rg.Optional, Rules: make([]Rule, 0, len(rg.Sources))}
		for _, rs := range rg.Sources {
			if rs.Source == "" || rs.Pattern == "" {
				return nil, fmt.Errorf("referrer: group %q has an entry without source or pattern", medium)
			}
			re, err := regexp.Compile(rs.Pattern)
			if err != nil {
				return nil, fmt.Errorf("referrer: %s/%s: %w", medium, rs.Source, err)
			}
			g.Rules = append(g.Rules, Rule{Source: rs.Source, Pattern: re})
		}
		t.Groups = append(t.Groups, g)
	}
	return t, nil
}

// Match returns the first rule matching host in table order
func (t *Table) Match(host string) (source, medium string, ok bool) {
	for _, g := range t.Groups {
		for _, r := range g.Rules {
			if r.Pattern.MatchString(host) {
				return r.Source, g.Medium, true
			}
		}
	}
	return "", "", false
}

// Mediums lists group mediums in scan order
func (t *Table) Mediums() []string {
	out := make([]string, len(t.Groups))
	for i, g := range t.Groups {
		out[i] = g.Medium
	}
	return out
}

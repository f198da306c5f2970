package wfc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RuleSetFile is the YAML layout of a rule set file
type RuleSetFile struct {
	Name     string          `yaml:"name"`
	SideMode SideMode        `yaml:"side_mode"`
	Glyphs   map[int]string  `yaml:"glyphs,omitempty"`
	Rules    []RuleFileEntry `yaml:"rules"`
}

// RuleFileEntry is one rule as written in a rule set file
type RuleFileEntry struct {
	ID           int                  `yaml:"id"`
	AllDirection bool                 `yaml:"all_direction"`
	Connectors   []ConnectorFileEntry `yaml:"connectors"`
}

// ConnectorFileEntry is one connector as written in a rule set file
type ConnectorFileEntry struct {
	Side    Side  `yaml:"side"`
	Pattern []int `yaml:"pattern"`
}

// LoadedRuleSet is a parsed rule set together with its compiled table
type LoadedRuleSet struct {
	Rules  *RuleSet
	Table  *LookupTable
	Glyphs map[int]rune
	Path   string
}

// ParseRuleSet parses rule set YAML into a RuleSet and its glyph map
func ParseRuleSet(data []byte) (*RuleSet, map[int]rune, error) {
	var file RuleSetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse rule set YAML: %w", err)
	}

	rs := NewRuleSet(file.Name)
	rs.SideMode = file.SideMode

	for i, entry := range file.Rules {
		rule := Rule{ID: entry.ID, AllDirection: entry.AllDirection}
		for j, c := range entry.Connectors {
			if len(c.Pattern) != 3 {
				return nil, nil, fmt.Errorf("rule %d (id %d) connector %d: %w, got %d",
					i, entry.ID, j, ErrInvalidPattern, len(c.Pattern))
			}
			rule.Connectors = append(rule.Connectors, Connector{
				Side:    c.Side,
				Pattern: EdgePattern{c.Pattern[0], c.Pattern[1], c.Pattern[2]},
			})
		}
		rs.AddConnector(rule)
	}

	glyphs := make(map[int]rune, len(file.Glyphs))
	for id, g := range file.Glyphs {
		for _, r := range g {
			glyphs[id] = r
			break
		}
	}

	return rs, glyphs, nil
}

// LoadRuleSetFromYAML reads, parses and compiles a rule set file. A missing
// name defaults to the file name without extension.
func LoadRuleSetFromYAML(path string) (*LoadedRuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set file: %w", err)
	}

	rs, glyphs, err := ParseRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rs.Name == "" {
		rs.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	table, err := rs.Compile()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &LoadedRuleSet{
		Rules:  rs,
		Table:  table,
		Glyphs: glyphs,
		Path:   path,
	}, nil
}

// RuleSetRegistry holds compiled rule sets by name
type RuleSetRegistry struct {
	mu   sync.RWMutex
	sets map[string]*LoadedRuleSet
}

// NewRuleSetRegistry creates an empty registry
func NewRuleSetRegistry() *RuleSetRegistry {
	return &RuleSetRegistry{sets: make(map[string]*LoadedRuleSet)}
}

// Register adds or replaces a rule set under its name
func (r *RuleSetRegistry) Register(set *LoadedRuleSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[set.Table.Name()] = set
}

// LoadDir loads every *.yaml and *.yml file in dir. It returns the number of
// rule sets loaded.
func (r *RuleSetRegistry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read rule set directory: %w", err)
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		set, err := LoadRuleSetFromYAML(filepath.Join(dir, e.Name()))
		if err != nil {
			return count, err
		}
		r.Register(set)
		count++
	}
	return count, nil
}

// Get returns the rule set registered under name
func (r *RuleSetRegistry) Get(name string) (*LoadedRuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.sets[name]
	return set, ok
}

// Names returns the registered rule set names in sorted order
func (r *RuleSetRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered rule sets
func (r *RuleSetRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sets)
}

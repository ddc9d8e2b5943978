package config

import (
	"fmt"
	"strings"
)

// ColumnRule copies a source column, or a "+"-joined combination of
// source columns, into one target column on the output layout.
type ColumnRule struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// SourceColumns splits the rule source on "+" and returns the parts.
func (r ColumnRule) SourceColumns() []string {
	parts := strings.Split(r.Source, "+")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// IsCombination reports whether the rule joins more than one source column.
func (r ColumnRule) IsCombination() bool {
	return strings.Contains(r.Source, "+")
}

// LiteralRule writes a fixed value into a target column for every mapped row.
type LiteralRule struct {
	Target string `yaml:"target"`
	Value  string `yaml:"value"`
}

// TypeMapping describes how rows of one sheet type land on the output layout.
type TypeMapping struct {
	Rules    []ColumnRule  `yaml:"rules"`
	Literals []LiteralRule `yaml:"literals,omitempty"`
}

// MappingConfig carries the per-type column mapping tables. Combination
// sources are written as "K+L" and joined with CombinationDelimiter.
type MappingConfig struct {
	CombinationDelimiter string                 `yaml:"combination_delimiter" envconfig:"COMBINATION_DELIMITER" validate:"required"`
	Tables               map[string]TypeMapping `yaml:"tables" validate:"required"`
}

// Table returns the mapping table for a sheet type key such as "M".
func (m MappingConfig) Table(sheetType string) (TypeMapping, bool) {
	t, ok := m.Tables[sheetType]
	return t, ok
}

func (m MappingConfig) validate() error {
	if len(m.Tables) == 0 {
		return fmt.Errorf("mapping.tables: at least one sheet type required")
	}
	for typ, table := range m.Tables {
		if !columnRe.MatchString(typ) {
			return fmt.Errorf("mapping.tables: %q is not a sheet type key", typ)
		}
		targets := make(map[string]bool)
		for _, rule := range table.Rules {
			for _, src := range rule.SourceColumns() {
				if !columnRe.MatchString(src) {
					return fmt.Errorf("mapping.tables.%s: source %q is not a column reference", typ, rule.Source)
				}
			}
			if !columnRe.MatchString(rule.Target) {
				return fmt.Errorf("mapping.tables.%s: target %q is not a column reference", typ, rule.Target)
			}
			if targets[rule.Target] {
				return fmt.Errorf("mapping.tables.%s: target %q mapped twice", typ, rule.Target)
			}
			targets[rule.Target] = true
		}
		for _, lit := range table.Literals {
			if !columnRe.MatchString(lit.Target) {
				return fmt.Errorf("mapping.tables.%s: literal target %q is not a column reference", typ, lit.Target)
			}
			if targets[lit.Target] {
				return fmt.Errorf("mapping.tables.%s: target %q mapped twice", typ, lit.Target)
			}
			targets[lit.Target] = true
		}
	}
	return nil
}

func (p PrefillConfig) validate() error {
	for typ, cols := range p.Columns {
		if !columnRe.MatchString(typ) {
			return fmt.Errorf("prefill.columns: %q is not a sheet type key", typ)
		}
		if err := checkColumns("prefill.columns."+typ, cols...); err != nil {
			return err
		}
	}
	return nil
}

// defaultMapping returns the built-in column tables for the four sheet
// types. Rules are applied in order; each target appears exactly once.
func defaultMapping() MappingConfig {
	return MappingConfig{
		CombinationDelimiter: "-",
		Tables: map[string]TypeMapping{
			"F": {
				Rules: []ColumnRule{
					{Source: "C", Target: "D"},
					{Source: "H", Target: "F"},
					{Source: "M", Target: "J"},
					{Source: "N", Target: "K"},
					{Source: "O", Target: "L"},
					{Source: "P", Target: "M"},
					{Source: "Q", Target: "N"},
					{Source: "S", Target: "O"},
					{Source: "T", Target: "H"},
					{Source: "W", Target: "P"},
					{Source: "K+L", Target: "I"},
				},
				Literals: []LiteralRule{
					{Target: "A", Value: "Art"},
				},
			},
			"M": {
				Rules: []ColumnRule{
					{Source: "B", Target: "B"},
					{Source: "C", Target: "C"},
					{Source: "I", Target: "D"},
					{Source: "J", Target: "F"},
					{Source: "K", Target: "E"},
					{Source: "P", Target: "J"},
					{Source: "Q", Target: "K"},
					{Source: "R", Target: "L"},
					{Source: "S", Target: "M"},
					{Source: "T", Target: "N"},
					{Source: "W", Target: "H"},
					{Source: "Z", Target: "P"},
					{Source: "O+P", Target: "I"},
				},
			},
			"C": {
				Rules: []ColumnRule{
					{Source: "B", Target: "B"},
					{Source: "C", Target: "C"},
					{Source: "H", Target: "D"},
					{Source: "I", Target: "F"},
					{Source: "J", Target: "E"},
					{Source: "O", Target: "J"},
					{Source: "P", Target: "K"},
					{Source: "Q", Target: "L"},
					{Source: "R", Target: "M"},
					{Source: "S", Target: "N"},
					{Source: "V", Target: "H"},
					{Source: "Y", Target: "P"},
					{Source: "N+O", Target: "I"},
				},
			},
			"P": {
				Rules: []ColumnRule{
					{Source: "B", Target: "Q"},
					{Source: "C", Target: "B"},
					{Source: "D", Target: "C"},
					{Source: "F", Target: "G"},
					{Source: "J", Target: "D"},
					{Source: "K", Target: "F"},
					{Source: "L", Target: "E"},
					{Source: "Q", Target: "J"},
					{Source: "R", Target: "K"},
					{Source: "S", Target: "L"},
					{Source: "T", Target: "M"},
					{Source: "U", Target: "N"},
					{Source: "W", Target: "O"},
					{Source: "X", Target: "H"},
					{Source: "O+P", Target: "I"},
				},
			},
		},
	}
}

// defaultPrefill returns the built-in forward-fill columns per sheet type.
// Finished-article sheets are absent on purpose: their source columns
// arrive fully populated and are left untouched.
func defaultPrefill() PrefillConfig {
	return PrefillConfig{
		Columns: map[string][]string{
			"M": {"J", "K", "L"},
			"C": {"I", "J", "K"},
			"P": {"J", "K", "L"},
		},
	}
}

// Package knowledge holds the static pest descriptions and treatment advice
// returned alongside every prediction.
package knowledge

import (
	"maps"
	"slices"
)

// PestInfo describes a pest class.
type PestInfo struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Symptoms    []string `json:"symptoms" yaml:"symptoms"`
	Causes      string   `json:"causes" yaml:"causes"`
	Severity    string   `json:"severity" yaml:"severity"`
}

// Treatment lists recommended actions for a pest class.
type Treatment struct {
	Prevention       []string `json:"prevention" yaml:"prevention"`
	Treatment        []string `json:"treatment" yaml:"treatment"`
	OrganicSolutions []string `json:"organic_solutions" yaml:"organic_solutions"`
}

// Base is an immutable lookup table. Lookups for unknown labels return
// documented defaults instead of failing.
type Base struct {
	info       map[string]PestInfo
	treatments map[string]Treatment
}

// New returns the built-in knowledge base.
func New() *Base {
	return &Base{
		info:       maps.Clone(builtinInfo),
		treatments: maps.Clone(builtinTreatments),
	}
}

// PestInfo returns the entry for label, or a placeholder named after it.
func (b *Base) PestInfo(label string) PestInfo {
	info, ok := b.info[label]
	if !ok {
		return defaultInfo(label)
	}
	info.Symptoms = slices.Clone(info.Symptoms)
	return info
}

// Recommendations returns treatment advice for label, or generic advice.
func (b *Base) Recommendations(label string) Treatment {
	t, ok := b.treatments[label]
	if !ok {
		return defaultTreatment()
	}
	return Treatment{
		Prevention:       slices.Clone(t.Prevention),
		Treatment:        slices.Clone(t.Treatment),
		OrganicSolutions: slices.Clone(t.OrganicSolutions),
	}
}

// HasTreatment reports whether label has specific advice rather than the default.
func (b *Base) HasTreatment(label string) bool {
	_, ok := b.treatments[label]
	return ok
}

func defaultTreatment() Treatment {
	return Treatment{
		Prevention:       []string{"Maintain plant health", "Regular monitoring"},
		Treatment:        []string{"Consult with pest management specialist"},
		OrganicSolutions: []string{"Research organic methods for this specific pest"},
	}
}

func defaultInfo(label string) PestInfo {
	return PestInfo{
		Name:        label,
		Description: "Detailed information not available",
		Symptoms:    []string{"Symptoms not listed"},
		Causes:      "Various factors",
		Severity:    "Unknown",
	}
}

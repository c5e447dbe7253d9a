// Package routing maps appointments to destination CRM calendars and
// operators to CRM assignees. Rulesets are loaded once at startup and
// treated as immutable input; resolution is a pure lookup evaluated per
// appointment because the age branch is patient-specific.
package routing

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// AdultAge is the age threshold separating the under/over calendars of an
// age-conditional rule.
const AdultAge = 18

// AgeSplit is an age-conditional calendar rule.
type AgeSplit struct {
	Under18 string `json:"under18"`
	Over18  string `json:"over18"`
}

// Treatment is a direct care-plan-code to calendar mapping.
type Treatment struct {
	CalendarID string `json:"calendar_id"`
}

// Ruleset is the calendar routing table. Special labels take priority over
// direct treatment entries; anything unmatched falls back to the default.
type Ruleset struct {
	DefaultCalendarID string               `json:"default_calendar_id"`
	SpecialLabels     map[string]AgeSplit  `json:"special_labels"`
	Treatments        map[string]Treatment `json:"treatments"`
}

// LoadRuleset reads a calendar ruleset from a JSON file.
func LoadRuleset(path string) (*Ruleset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar ruleset %s: %w", path, err)
	}
	var rs Ruleset
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("parse calendar ruleset %s: %w", path, err)
	}
	if rs.DefaultCalendarID == "" {
		return nil, fmt.Errorf("calendar ruleset %s: default_calendar_id is required", path)
	}
	return &rs, nil
}

// Resolve returns the destination calendar id for a care-plan code and a
// patient age. An empty code routes to the default calendar. Codes are
// compared case-insensitively. A nil age is treated as under-threshold,
// matching the upstream behavior when the birth date is unknown.
func (rs *Ruleset) Resolve(code string, age *int) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return rs.DefaultCalendarID
	}
	if split, ok := rs.SpecialLabels[code]; ok {
		if age != nil && *age >= AdultAge {
			return split.Over18
		}
		return split.Under18
	}
	if t, ok := rs.Treatments[code]; ok {
		return t.CalendarID
	}
	return rs.DefaultCalendarID
}

// Operators maps a source-system operator id to the CRM user the pushed
// event is assigned to. Operators absent from the map are a configuration
// gap: their appointments are skipped without touching sync flags.
type Operators map[string]string

// LoadOperators reads the operator map from a JSON file.
func LoadOperators(path string) (Operators, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read operator map %s: %w", path, err)
	}
	var ops Operators
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, fmt.Errorf("parse operator map %s: %w", path, err)
	}
	return ops, nil
}

// Assignee returns the CRM user id for an operator, if mapped.
func (o Operators) Assignee(operatorID int64) (string, bool) {
	id, ok := o[fmt.Sprintf("%d", operatorID)]
	return id, ok
}

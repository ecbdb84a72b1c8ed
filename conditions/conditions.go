// Package conditions evaluates field-level display rules.
//
// Every rule that targets a field is evaluated against the current answers and the
// most restrictive matching action wins: hide, then disable, then require, then show.
// A field that carries show rules stays hidden until one of them matches.
package conditions

import (
	"strconv"
	"strings"
)

type Operator string

const (
	Equals      Operator = "equals"
	NotEquals   Operator = "not_equals"
	Contains    Operator = "contains"
	GreaterThan Operator = "greater_than"
	LessThan    Operator = "less_than"
)

type Action string

const (
	Show    Action = "show"
	Hide    Action = "hide"
	Require Action = "require"
	Disable Action = "disable"
)

// precedence ranks actions; higher is more restrictive.
var precedence = map[Action]int{
	Show:    1,
	Require: 2,
	Disable: 3,
	Hide:    4,
}

func ValidOperator(op string) bool {
	switch Operator(op) {
	case Equals, NotEquals, Contains, GreaterThan, LessThan:
		return true
	}
	return false
}

func ValidAction(a string) bool {
	_, ok := precedence[Action(a)]
	return ok
}

type Rule struct {
	TriggerID string   `json:"field_id"`
	Operator  Operator `json:"operator"`
	Value     string   `json:"value"`
	Action    Action   `json:"action"`
}

// Answers maps a field id to its current values. Multi-choice fields carry several.
type Answers map[string][]string

// State is the outcome of evaluating a field's rules.
type State struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
	Disabled bool `json:"disabled"`
}

// Matches reports whether the trigger's current answers satisfy the rule.
func (r Rule) Matches(answers Answers) bool {
	values := answers[r.TriggerID]
	switch r.Operator {
	case Equals:
		for _, v := range values {
			if equal(v, r.Value) {
				return true
			}
		}
		return false
	case NotEquals:
		for _, v := range values {
			if equal(v, r.Value) {
				return false
			}
		}
		return true
	case Contains:
		for _, v := range values {
			if strings.Contains(v, r.Value) {
				return true
			}
		}
		return false
	case GreaterThan, LessThan:
		if len(values) == 0 {
			return false
		}
		got, ok1 := number(values[0])
		want, ok2 := number(r.Value)
		if !ok1 || !ok2 {
			return false
		}
		if r.Operator == GreaterThan {
			return got > want
		}
		return got < want
	}
	return false
}

// Evaluate combines the rules targeting one field. required is the field's own flag.
func Evaluate(rules []Rule, answers Answers, required bool) State {
	winner := Action("")
	hasShow := false
	for _, r := range rules {
		if r.Action == Show {
			hasShow = true
		}
		if !r.Matches(answers) {
			continue
		}
		if precedence[r.Action] > precedence[winner] {
			winner = r.Action
		}
	}

	switch winner {
	case Hide:
		return State{}
	case Disable:
		return State{Visible: true, Disabled: true}
	case Require:
		return State{Visible: true, Required: true}
	case Show:
		return State{Visible: true, Required: required}
	}
	if hasShow {
		return State{}
	}
	return State{Visible: true, Required: required}
}

func equal(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	return a == b
}

func number(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

package condition

import (
	"strconv"
	"strings"

	"pneumatic/domain"

	"github.com/fundwit/go-commons/types"
)

type Decision string

const (
	DecisionProceed     = Decision("proceed")
	DecisionSkipTask    = Decision(domain.ConditionActionSkipTask)
	DecisionEndWorkflow = Decision(domain.ConditionActionEndWorkflow)
)

// Condition -> Rule[] -> Predicate[] is loaded once per task evaluation and
// interpreted in memory, keeping the evaluator free of storage concerns.
type Condition struct {
	ID     types.ID
	Action string
	Order  int

	Rules []Rule
}

type Rule struct {
	Order      int
	Predicates []Predicate
}

type Predicate struct {
	FieldAPIName string
	FieldType    string
	Operator     string
	Value        string
}

type Outcome struct {
	Decision    Decision
	ConditionID types.ID
}

// Evaluate walks conditions in stored order. A rule matches when all of its
// predicates hold, a condition fires on its first matching rule, and the
// first firing condition decides the outcome for the task.
func Evaluate(conditions []Condition, fields map[string]domain.FieldValue) Outcome {
	for _, c := range conditions {
		for _, r := range c.Rules {
			if r.matches(fields) {
				return Outcome{Decision: Decision(c.Action), ConditionID: c.ID}
			}
		}
	}
	return Outcome{Decision: DecisionProceed}
}

func (r *Rule) matches(fields map[string]domain.FieldValue) bool {
	if len(r.Predicates) == 0 {
		return false
	}
	for _, p := range r.Predicates {
		if !p.matches(fields) {
			return false
		}
	}
	return true
}

// matches degrades to false on an unresolvable field reference or an
// unparsable value: a broken predicate never matches and never raises.
func (p *Predicate) matches(fields map[string]domain.FieldValue) bool {
	field, found := fields[p.FieldAPIName]

	switch p.Operator {
	case domain.OperatorExist:
		return found && !field.IsEmpty()
	case domain.OperatorNotExist:
		return !found || field.IsEmpty()
	}

	if !found {
		return false
	}

	switch field.Type {
	case domain.FieldTypeNumber, domain.FieldTypeDate:
		return matchNumeric(p.Operator, field.Value, p.Value)
	case domain.FieldTypeCheckbox, domain.FieldTypeRadio, domain.FieldTypeDropdown, domain.FieldTypeUser:
		return matchSelection(p.Operator, field.SelectedIDs, p.Value)
	default:
		return matchString(p.Operator, field.Value, p.Value)
	}
}

func matchNumeric(operator, fieldValue, predicateValue string) bool {
	current, err := strconv.ParseFloat(fieldValue, 64)
	if err != nil {
		return false
	}
	expected, err := strconv.ParseFloat(predicateValue, 64)
	if err != nil {
		return false
	}

	switch operator {
	case domain.OperatorEqual:
		return current == expected
	case domain.OperatorNotEqual:
		return current != expected
	case domain.OperatorMoreThan:
		return current > expected
	case domain.OperatorLessThan:
		return current < expected
	}
	return false
}

func matchSelection(operator string, selections domain.StringList, predicateValue string) bool {
	switch operator {
	case domain.OperatorEqual:
		return len(selections) == 1 && selections[0] == predicateValue
	case domain.OperatorNotEqual:
		return !(len(selections) == 1 && selections[0] == predicateValue)
	case domain.OperatorContain:
		return selections.Contains(predicateValue)
	case domain.OperatorNotContain:
		return !selections.Contains(predicateValue)
	}
	return false
}

func matchString(operator, fieldValue, predicateValue string) bool {
	switch operator {
	case domain.OperatorEqual:
		return fieldValue == predicateValue
	case domain.OperatorNotEqual:
		return fieldValue != predicateValue
	case domain.OperatorContain:
		return strings.Contains(fieldValue, predicateValue)
	case domain.OperatorNotContain:
		return !strings.Contains(fieldValue, predicateValue)
	}
	return false
}

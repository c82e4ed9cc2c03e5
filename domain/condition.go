package domain

import (
	"github.com/fundwit/go-commons/types"
)

const (
	ConditionActionSkipTask    = "skip_task"
	ConditionActionEndWorkflow = "end_workflow"
)

// predicate operators
const (
	OperatorEqual      = "equal"
	OperatorNotEqual   = "not_equal"
	OperatorExist      = "exist"
	OperatorNotExist   = "not_exist"
	OperatorContain    = "contain"
	OperatorNotContain = "not_contain"
	OperatorMoreThan   = "more_than"
	OperatorLessThan   = "less_than"
)

// ConditionTemplate binds an action to one or more rules of a task template.
// Conditions are evaluated in Order, first firing condition wins.
type ConditionTemplate struct {
	ID             types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	TaskTemplateID types.ID `json:"taskTemplateId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Action string `json:"action"` // skip_task, end_workflow
	Order  int    `json:"order"`
}

// RuleTemplate is a conjunction of predicates.
type RuleTemplate struct {
	ID                  types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ConditionTemplateID types.ID `json:"conditionTemplateId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Order int `json:"order"`
}

type PredicateTemplate struct {
	ID             types.ID `json:"id" gorm:"primary_key" sql:"type:BIGINT UNSIGNED NOT NULL"`
	RuleTemplateID types.ID `json:"ruleTemplateId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Order int `json:"order"`

	FieldAPIName string `json:"fieldApiName"`
	FieldType    string `json:"fieldType"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

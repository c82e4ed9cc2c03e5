package condition

import (
	"pneumatic/domain"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	LoadTaskConditionsFunc = LoadTaskConditions
)

// LoadTaskConditions rebuilds the in-memory condition tree of a task template
// from its rows, preserving the stored evaluation order.
func LoadTaskConditions(taskTemplateID types.ID, db *gorm.DB) ([]Condition, error) {
	var conditionRecords []domain.ConditionTemplate
	if err := db.Where(&domain.ConditionTemplate{TaskTemplateID: taskTemplateID}).
		Order("`order` ASC").Find(&conditionRecords).Error; err != nil {
		return nil, err
	}
	if len(conditionRecords) == 0 {
		return nil, nil
	}

	conditions := make([]Condition, 0, len(conditionRecords))
	for _, cr := range conditionRecords {
		c := Condition{ID: cr.ID, Action: cr.Action, Order: cr.Order}

		var ruleRecords []domain.RuleTemplate
		if err := db.Where(&domain.RuleTemplate{ConditionTemplateID: cr.ID}).
			Order("`order` ASC").Find(&ruleRecords).Error; err != nil {
			return nil, err
		}
		for _, rr := range ruleRecords {
			rule := Rule{Order: rr.Order}

			var predicateRecords []domain.PredicateTemplate
			if err := db.Where(&domain.PredicateTemplate{RuleTemplateID: rr.ID}).
				Order("`order` ASC").Find(&predicateRecords).Error; err != nil {
				return nil, err
			}
			for _, pr := range predicateRecords {
				rule.Predicates = append(rule.Predicates, Predicate{
					FieldAPIName: pr.FieldAPIName,
					FieldType:    pr.FieldType,
					Operator:     pr.Operator,
					Value:        pr.Value,
				})
			}
			c.Rules = append(c.Rules, rule)
		}
		conditions = append(conditions, c)
	}
	return conditions, nil
}

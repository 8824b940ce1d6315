/*
 * @module service/validation/condition_evaluator_test
 * @description 条件评估器测试，覆盖条件结构校验与各规则类型的单记录评估
 * @architecture 测试层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 测试数据输入 -> 条件评估 -> 结果验证
 * @rules 结构不合法的条件必须被拒绝；评估结果携带期望值与实际值
 * @dependencies testing, github.com/stretchr/testify
 * @refs condition_evaluator.go
 */

package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"vbkg-validation-service/service/models"
)

// TestValidateConditionShape 测试各规则类型的条件结构校验
func TestValidateConditionShape(t *testing.T) {
	evaluator := NewConditionEvaluator(nil)

	tests := []struct {
		name       string
		ruleType   string
		conditions models.JSONB
		wantErr    bool
	}{
		{
			name:       "字段校验_合法条件",
			ruleType:   RuleTypeFieldValidation,
			conditions: models.JSONB{"field": "name", "operator": "is_not_empty"},
			wantErr:    false,
		},
		{
			name:       "字段校验_缺少operator",
			ruleType:   RuleTypeFieldValidation,
			conditions: models.JSONB{"field": "name"},
			wantErr:    true,
		},
		{
			name:       "字段校验_不支持的操作符",
			ruleType:   RuleTypeFieldValidation,
			conditions: models.JSONB{"field": "name", "operator": "fuzzy_match"},
			wantErr:    true,
		},
		{
			name:       "格式校验_合法正则",
			ruleType:   RuleTypeFormatValidation,
			conditions: models.JSONB{"field": "email", "operator": "matches_pattern", "value": `^\S+@\S+$`},
			wantErr:    false,
		},
		{
			name:       "格式校验_非法正则",
			ruleType:   RuleTypeFormatValidation,
			conditions: models.JSONB{"field": "email", "operator": "matches_pattern", "value": "[invalid"},
			wantErr:    true,
		},
		{
			name:       "格式校验_operator不是matches_pattern",
			ruleType:   RuleTypeFormatValidation,
			conditions: models.JSONB{"field": "email", "operator": "equals", "value": "x"},
			wantErr:    true,
		},
		{
			name:       "业务逻辑_区间规则",
			ruleType:   RuleTypeBusinessLogic,
			conditions: models.JSONB{"start_field": "start_date", "end_field": "end_date"},
			wantErr:    false,
		},
		{
			name:       "业务逻辑_既无field也无区间",
			ruleType:   RuleTypeBusinessLogic,
			conditions: models.JSONB{"operator": "equals"},
			wantErr:    true,
		},
		{
			name:       "唯一性_合法条件",
			ruleType:   RuleTypeUniquenessCheck,
			conditions: models.JSONB{"field": "code", "operator": "unique"},
			wantErr:    false,
		},
		{
			name:       "唯一性_缺少field",
			ruleType:   RuleTypeUniquenessCheck,
			conditions: models.JSONB{"operator": "unique"},
			wantErr:    true,
		},
		{
			name:       "关系校验_有关系类型",
			ruleType:   RuleTypeRelationshipValidation,
			conditions: models.JSONB{"relationship_type": "belongs_to"},
			wantErr:    false,
		},
		{
			name:       "关系校验_空条件",
			ruleType:   RuleTypeRelationshipValidation,
			conditions: models.JSONB{"other": 1},
			wantErr:    true,
		},
		{
			name:       "空条件被拒绝",
			ruleType:   RuleTypeFieldValidation,
			conditions: models.JSONB{},
			wantErr:    true,
		},
		{
			name:       "未知规则类型",
			ruleType:   "magic_validation",
			conditions: models.JSONB{"field": "x"},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := evaluator.ValidateConditionShape(tt.ruleType, tt.conditions)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConditionShape))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestEvaluateFieldOperators 测试字段校验的各操作符
func TestEvaluateFieldOperators(t *testing.T) {
	evaluator := NewConditionEvaluator(nil)
	ctx := context.Background()

	record := &TargetRecord{
		ID:         "e1",
		EntityType: "person",
		Properties: map[string]interface{}{
			"name":  "张三",
			"age":   30,
			"email": "zhangsan@example.com",
			"blank": "   ",
		},
	}

	tests := []struct {
		name     string
		cond     *ValidationCondition
		expected bool
	}{
		{"equals通过", &ValidationCondition{Field: "age", Operator: "equals", Value: 30}, true},
		{"equals数值字符串互通", &ValidationCondition{Field: "age", Operator: "equals", Value: "30"}, true},
		{"not_equals", &ValidationCondition{Field: "age", Operator: "not_equals", Value: 31}, true},
		{"greater_than", &ValidationCondition{Field: "age", Operator: "greater_than", Value: 18}, true},
		{"less_than失败", &ValidationCondition{Field: "age", Operator: "less_than", Value: 18}, false},
		{"contains", &ValidationCondition{Field: "email", Operator: "contains", Value: "@example"}, true},
		{"starts_with", &ValidationCondition{Field: "email", Operator: "starts_with", Value: "zhangsan"}, true},
		{"ends_with失败", &ValidationCondition{Field: "email", Operator: "ends_with", Value: ".org"}, false},
		{"exists", &ValidationCondition{Field: "name", Operator: "exists"}, true},
		{"not_exists字段缺失", &ValidationCondition{Field: "phone", Operator: "not_exists"}, true},
		{"is_empty空白字符串", &ValidationCondition{Field: "blank", Operator: "is_empty"}, true},
		{"is_not_empty失败于缺失字段", &ValidationCondition{Field: "phone", Operator: "is_not_empty"}, false},
		{"in列表", &ValidationCondition{Field: "age", Operator: "in", Value: []interface{}{20, 30, 40}}, true},
		{"not_in列表", &ValidationCondition{Field: "age", Operator: "not_in", Value: []interface{}{1, 2}}, true},
		{"matches_pattern", &ValidationCondition{Field: "email", Operator: "matches_pattern", Value: `^\S+@\S+\.com$`}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, RuleTypeFieldValidation, tt.cond, record)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result.Passed)
			if !result.Passed {
				assert.NotEmpty(t, result.Message)
			}
		})
	}
}

// TestEvaluateFieldMissing 测试缺失字段的评估结果携带实际值占位
func TestEvaluateFieldMissing(t *testing.T) {
	evaluator := NewConditionEvaluator(nil)

	record := &TargetRecord{ID: "e1", EntityType: "person", Properties: map[string]interface{}{}}
	cond := &ValidationCondition{Field: "id_number", Operator: "is_not_empty"}

	result, err := evaluator.Evaluate(context.Background(), RuleTypeFieldValidation, cond, record)
	assert.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, "id_number", result.FieldName)
	assert.Equal(t, "<缺失>", result.ActualValue)
}

// TestEvaluateBusinessLogicRange 测试区间规则
func TestEvaluateBusinessLogicRange(t *testing.T) {
	evaluator := NewConditionEvaluator(nil)
	ctx := context.Background()
	cond := &ValidationCondition{StartField: "start_date", EndField: "end_date"}

	// 起始不大于结束，通过
	ok := &TargetRecord{Properties: map[string]interface{}{
		"start_date": "2024-01-01", "end_date": "2024-12-31",
	}}
	result, err := evaluator.Evaluate(ctx, RuleTypeBusinessLogic, cond, ok)
	assert.NoError(t, err)
	assert.True(t, result.Passed)

	// 起始大于结束，失败
	bad := &TargetRecord{Properties: map[string]interface{}{
		"start_date": "2025-01-01", "end_date": "2024-12-31",
	}}
	result, err = evaluator.Evaluate(ctx, RuleTypeBusinessLogic, cond, bad)
	assert.NoError(t, err)
	assert.False(t, result.Passed)

	// 区间字段缺失，失败
	missing := &TargetRecord{Properties: map[string]interface{}{"start_date": "2024-01-01"}}
	result, err = evaluator.Evaluate(ctx, RuleTypeBusinessLogic, cond, missing)
	assert.NoError(t, err)
	assert.False(t, result.Passed)
}

// TestEvaluateRelationship 测试关系校验
func TestEvaluateRelationship(t *testing.T) {
	evaluator := NewConditionEvaluator(nil)
	ctx := context.Background()

	cond := &ValidationCondition{RelationshipType: "belongs_to"}

	// 类型匹配且端点完整
	rel := &TargetRecord{
		ID: "r1", IsRelationship: true, RelationshipType: "belongs_to",
		SourceEntityID: "e1", TargetEntityID: "e2",
		Properties: map[string]interface{}{},
	}
	result, err := evaluator.Evaluate(ctx, RuleTypeRelationshipValidation, cond, rel)
	assert.NoError(t, err)
	assert.True(t, result.Passed)

	// 关系类型不匹配
	wrongType := &TargetRecord{
		ID: "r2", IsRelationship: true, RelationshipType: "works_at",
		SourceEntityID: "e1", TargetEntityID: "e2",
	}
	result, err = evaluator.Evaluate(ctx, RuleTypeRelationshipValidation, cond, wrongType)
	assert.NoError(t, err)
	assert.False(t, result.Passed)

	// 端点缺失
	dangling := &TargetRecord{
		ID: "r3", IsRelationship: true, RelationshipType: "belongs_to",
		SourceEntityID: "e1",
	}
	result, err = evaluator.Evaluate(ctx, RuleTypeRelationshipValidation, cond, dangling)
	assert.NoError(t, err)
	assert.False(t, result.Passed)

	// 子规则作用于关系属性
	withSub := &ValidationCondition{
		RelationshipType: "belongs_to",
		ValidationRules: []interface{}{
			map[string]interface{}{"field": "weight", "operator": "greater_than", "value": 0},
		},
	}
	weighted := &TargetRecord{
		ID: "r4", IsRelationship: true, RelationshipType: "belongs_to",
		SourceEntityID: "e1", TargetEntityID: "e2",
		Properties: map[string]interface{}{"weight": -1},
	}
	result, err = evaluator.Evaluate(ctx, RuleTypeRelationshipValidation, withSub, weighted)
	assert.NoError(t, err)
	assert.False(t, result.Passed)
}

// TestEvaluateUniquenessRejected 唯一性检查不支持单记录评估
func TestEvaluateUniquenessRejected(t *testing.T) {
	evaluator := NewConditionEvaluator(nil)
	_, err := evaluator.Evaluate(context.Background(), RuleTypeUniquenessCheck,
		&ValidationCondition{Field: "code"}, &TargetRecord{})
	assert.Error(t, err)
}

// stubHook 测试用自定义校验钩子
type stubHook struct {
	passed  bool
	message string
	err     error
}

func (s *stubHook) Evaluate(ctx context.Context, script string, record map[string]interface{}) (bool, string, error) {
	return s.passed, s.message, s.err
}

// TestEvaluateCustom 测试自定义校验委托给钩子
func TestEvaluateCustom(t *testing.T) {
	ctx := context.Background()
	cond := &ValidationCondition{Script: "return true"}
	record := &TargetRecord{Properties: map[string]interface{}{}}

	// 钩子通过
	evaluator := NewConditionEvaluator(&stubHook{passed: true})
	result, err := evaluator.Evaluate(ctx, RuleTypeCustomValidation, cond, record)
	assert.NoError(t, err)
	assert.True(t, result.Passed)

	// 钩子拒绝
	evaluator = NewConditionEvaluator(&stubHook{passed: false, message: "金额不能为负"})
	result, err = evaluator.Evaluate(ctx, RuleTypeCustomValidation, cond, record)
	assert.NoError(t, err)
	assert.False(t, result.Passed)
	assert.Equal(t, "金额不能为负", result.Message)

	// 钩子出错，包装为评估器故障
	evaluator = NewConditionEvaluator(&stubHook{err: errors.New("script panic")})
	_, err = evaluator.Evaluate(ctx, RuleTypeCustomValidation, cond, record)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrEvaluatorFault))
}

/*
 * @module service/validation/condition_evaluator
 * @description 条件评估器，负责条件结构校验和单条记录的条件评估
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 条件结构校验 -> 字段取值 -> 操作符评估 -> 结果返回
 * @rules 条件结构在规则创建/更新时校验，执行时防御性复核；结构不合法的条件绝不静默接受
 * @dependencies github.com/spf13/cast
 * @refs service/validation/types.go, service/validation/executor.go
 */

package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"vbkg-validation-service/service/models"
)

// 字段校验支持的操作符
var fieldOperators = map[string]bool{
	"equals": true, "not_equals": true,
	"greater_than": true, "less_than": true,
	"greater_equals": true, "less_equals": true,
	"contains": true, "not_contains": true,
	"starts_with": true, "ends_with": true,
	"in": true, "not_in": true,
	"exists": true, "not_exists": true,
	"is_empty": true, "is_not_empty": true,
	"matches_pattern": true,
}

// CustomHook 自定义校验钩子接口，由外部协作方提供沙箱化的脚本执行能力
type CustomHook interface {
	// Evaluate 对单条记录执行自定义校验脚本
	Evaluate(ctx context.Context, script string, record map[string]interface{}) (bool, string, error)
}

// ConditionEvaluator 条件评估器
type ConditionEvaluator struct {
	customHook CustomHook

	mu           sync.RWMutex
	patternCache map[string]*regexp.Regexp
}

// NewConditionEvaluator 创建条件评估器实例
func NewConditionEvaluator(hook CustomHook) *ConditionEvaluator {
	return &ConditionEvaluator{
		customHook:   hook,
		patternCache: make(map[string]*regexp.Regexp),
	}
}

// ParseCondition 将条件 JSONB 解析为强类型条件结构
func ParseCondition(conditions models.JSONB) (*ValidationCondition, error) {
	data, err := json.Marshal(conditions)
	if err != nil {
		return nil, fmt.Errorf("条件序列化失败: %w", err)
	}
	var cond ValidationCondition
	if err := json.Unmarshal(data, &cond); err != nil {
		return nil, fmt.Errorf("条件解析失败: %w", err)
	}
	return &cond, nil
}

// ValidateConditionShape 按规则类型校验条件结构
// 结构不合法时返回 ErrInvalidConditionShape，规则创建/更新被拒绝
func (e *ConditionEvaluator) ValidateConditionShape(ruleType string, conditions models.JSONB) error {
	if len(conditions) == 0 && ruleType != RuleTypeCustomValidation {
		return fmt.Errorf("%w: 条件不能为空", ErrInvalidConditionShape)
	}

	cond, err := ParseCondition(conditions)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConditionShape, err)
	}

	switch ruleType {
	case RuleTypeFieldValidation:
		if cond.Field == "" || cond.Operator == "" {
			return fmt.Errorf("%w: field_validation 需要 field 和 operator", ErrInvalidConditionShape)
		}
		if !fieldOperators[cond.Operator] {
			return fmt.Errorf("%w: 不支持的操作符 %s", ErrInvalidConditionShape, cond.Operator)
		}
	case RuleTypeFormatValidation:
		if cond.Field == "" {
			return fmt.Errorf("%w: format_validation 需要 field", ErrInvalidConditionShape)
		}
		if cond.Operator != "matches_pattern" {
			return fmt.Errorf("%w: format_validation 的 operator 必须为 matches_pattern", ErrInvalidConditionShape)
		}
		pattern := cast.ToString(cond.Value)
		if pattern == "" {
			return fmt.Errorf("%w: format_validation 需要非空的 value 作为匹配模式", ErrInvalidConditionShape)
		}
		if _, err := e.compilePattern(pattern); err != nil {
			return fmt.Errorf("%w: 正则表达式不合法: %v", ErrInvalidConditionShape, err)
		}
	case RuleTypeBusinessLogic:
		hasField := cond.Field != ""
		hasRange := cond.StartField != "" && cond.EndField != ""
		if !hasField && !hasRange {
			return fmt.Errorf("%w: business_logic 需要 field，或同时提供 start_field 和 end_field", ErrInvalidConditionShape)
		}
		if hasField && cond.Operator == "" {
			return fmt.Errorf("%w: business_logic 的字段比较需要 operator", ErrInvalidConditionShape)
		}
	case RuleTypeUniquenessCheck:
		if cond.Field == "" {
			return fmt.Errorf("%w: uniqueness_check 需要 field", ErrInvalidConditionShape)
		}
		if cond.Operator != "unique" {
			return fmt.Errorf("%w: uniqueness_check 的 operator 必须为 unique", ErrInvalidConditionShape)
		}
	case RuleTypeRelationshipValidation:
		if cond.RelationshipType == "" && len(cond.ValidationRules) == 0 {
			return fmt.Errorf("%w: relationship_validation 需要 relationship_type 或 validation_rules", ErrInvalidConditionShape)
		}
	case RuleTypeCustomValidation:
		// 自定义校验的条件结构不受约束，由外部钩子负责解释
	default:
		return fmt.Errorf("%w: 未知的规则类型 %s", ErrInvalidConditionShape, ruleType)
	}

	return nil
}

// Evaluate 对单条目标记录评估条件，返回通过/失败及期望值与实际值
// uniqueness_check 需要全量扫描，不走单记录评估路径（见 executor 的两趟扫描）
func (e *ConditionEvaluator) Evaluate(ctx context.Context, ruleType string, cond *ValidationCondition, record *TargetRecord) (*EvalResult, error) {
	// 执行时防御性复核条件结构
	switch ruleType {
	case RuleTypeFieldValidation:
		return e.evaluateField(cond, record)
	case RuleTypeFormatValidation:
		return e.evaluateFormat(cond, record)
	case RuleTypeBusinessLogic:
		return e.evaluateBusinessLogic(cond, record)
	case RuleTypeRelationshipValidation:
		return e.evaluateRelationship(cond, record)
	case RuleTypeCustomValidation:
		return e.evaluateCustom(ctx, cond, record)
	case RuleTypeUniquenessCheck:
		return nil, fmt.Errorf("uniqueness_check 不支持单记录评估")
	default:
		return nil, fmt.Errorf("未知的规则类型: %s", ruleType)
	}
}

// evaluateField 字段校验评估
func (e *ConditionEvaluator) evaluateField(cond *ValidationCondition, record *TargetRecord) (*EvalResult, error) {
	if cond.Field == "" || cond.Operator == "" {
		return nil, fmt.Errorf("%w: field_validation 需要 field 和 operator", ErrInvalidConditionShape)
	}

	value, exists := record.Properties[cond.Field]
	passed, expected := e.applyOperator(cond.Operator, value, exists, cond.Value)

	result := &EvalResult{
		Passed:        passed,
		FieldName:     cond.Field,
		ExpectedValue: expected,
		ActualValue:   formatValue(value, exists),
	}
	if !passed {
		result.Message = fmt.Sprintf("字段 %s 未满足条件 %s", cond.Field, cond.Operator)
	}
	return result, nil
}

// evaluateFormat 格式校验评估
func (e *ConditionEvaluator) evaluateFormat(cond *ValidationCondition, record *TargetRecord) (*EvalResult, error) {
	if cond.Field == "" || cond.Operator != "matches_pattern" {
		return nil, fmt.Errorf("%w: format_validation 需要 field 和 matches_pattern", ErrInvalidConditionShape)
	}
	pattern := cast.ToString(cond.Value)
	if pattern == "" {
		return nil, fmt.Errorf("%w: format_validation 需要非空模式", ErrInvalidConditionShape)
	}

	regex, err := e.compilePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConditionShape, err)
	}

	value, exists := record.Properties[cond.Field]
	strValue := cast.ToString(value)
	passed := exists && regex.MatchString(strValue)

	result := &EvalResult{
		Passed:        passed,
		FieldName:     cond.Field,
		ExpectedValue: fmt.Sprintf("匹配模式 %s", pattern),
		ActualValue:   formatValue(value, exists),
	}
	if !passed {
		result.Message = fmt.Sprintf("字段 %s 的值不匹配模式 %s", cond.Field, pattern)
	}
	return result, nil
}

// evaluateBusinessLogic 业务逻辑评估，支持字段比较和区间规则
func (e *ConditionEvaluator) evaluateBusinessLogic(cond *ValidationCondition, record *TargetRecord) (*EvalResult, error) {
	// 区间规则: start_field 的值必须不大于 end_field 的值
	if cond.StartField != "" && cond.EndField != "" {
		startValue, startExists := record.Properties[cond.StartField]
		endValue, endExists := record.Properties[cond.EndField]

		result := &EvalResult{
			FieldName:     cond.StartField,
			ExpectedValue: fmt.Sprintf("%s <= %s", cond.StartField, cond.EndField),
			ActualValue:   fmt.Sprintf("%s=%s, %s=%s", cond.StartField, formatValue(startValue, startExists), cond.EndField, formatValue(endValue, endExists)),
		}

		if !startExists || !endExists {
			result.Passed = false
			result.Message = fmt.Sprintf("区间字段 %s/%s 缺失", cond.StartField, cond.EndField)
			return result, nil
		}

		ordered, comparable := compareOrdered(startValue, endValue)
		if !comparable {
			result.Passed = false
			result.Message = fmt.Sprintf("区间字段 %s/%s 的值不可比较", cond.StartField, cond.EndField)
			return result, nil
		}

		result.Passed = ordered <= 0
		if !result.Passed {
			result.Message = fmt.Sprintf("字段 %s 的值大于字段 %s 的值", cond.StartField, cond.EndField)
		}
		return result, nil
	}

	if cond.Field == "" {
		return nil, fmt.Errorf("%w: business_logic 需要 field 或区间字段", ErrInvalidConditionShape)
	}
	return e.evaluateField(cond, record)
}

// evaluateRelationship 关系校验评估，检查关系类型及端点实体
func (e *ConditionEvaluator) evaluateRelationship(cond *ValidationCondition, record *TargetRecord) (*EvalResult, error) {
	if cond.RelationshipType == "" && len(cond.ValidationRules) == 0 {
		return nil, fmt.Errorf("%w: relationship_validation 需要 relationship_type 或 validation_rules", ErrInvalidConditionShape)
	}

	if !record.IsRelationship {
		return &EvalResult{
			Passed:        false,
			Message:       "目标记录不是关系",
			ExpectedValue: "relationship",
			ActualValue:   "entity",
		}, nil
	}

	// 关系类型约束
	if cond.RelationshipType != "" && record.RelationshipType != cond.RelationshipType {
		return &EvalResult{
			Passed:        false,
			Message:       fmt.Sprintf("关系类型 %s 不符合要求", record.RelationshipType),
			ExpectedValue: cond.RelationshipType,
			ActualValue:   record.RelationshipType,
		}, nil
	}

	// 端点完整性: 关系两端必须连接到实体
	if record.SourceEntityID == "" || record.TargetEntityID == "" {
		return &EvalResult{
			Passed:        false,
			Message:       "关系缺少源实体或目标实体",
			ExpectedValue: "源实体与目标实体均存在",
			ActualValue:   fmt.Sprintf("source=%s, target=%s", record.SourceEntityID, record.TargetEntityID),
		}, nil
	}

	// 子规则: 对关系属性逐条应用字段校验
	for _, raw := range cond.ValidationRules {
		sub, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		subCond, err := ParseCondition(models.JSONB(sub))
		if err != nil {
			continue
		}
		if subCond.Field == "" || subCond.Operator == "" {
			continue
		}
		result, err := e.evaluateField(subCond, record)
		if err != nil {
			return nil, err
		}
		if !result.Passed {
			return result, nil
		}
	}

	return &EvalResult{Passed: true}, nil
}

// evaluateCustom 自定义校验评估，委托给外部沙箱钩子
func (e *ConditionEvaluator) evaluateCustom(ctx context.Context, cond *ValidationCondition, record *TargetRecord) (*EvalResult, error) {
	if e.customHook == nil {
		return nil, fmt.Errorf("%w: 未配置自定义校验钩子", ErrEvaluatorFault)
	}

	passed, message, err := e.customHook.Evaluate(ctx, cond.Script, record.Properties)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluatorFault, err)
	}

	result := &EvalResult{Passed: passed, Message: message}
	if !passed && result.Message == "" {
		result.Message = "自定义校验未通过"
	}
	return result, nil
}

// applyOperator 应用单个操作符，返回是否通过及期望值描述
func (e *ConditionEvaluator) applyOperator(operator string, value interface{}, exists bool, expected interface{}) (bool, string) {
	switch operator {
	case "exists":
		return exists, "字段存在"
	case "not_exists":
		return !exists, "字段不存在"
	case "is_empty":
		return !exists || strings.TrimSpace(cast.ToString(value)) == "", "字段为空"
	case "is_not_empty":
		return exists && strings.TrimSpace(cast.ToString(value)) != "", "字段非空"
	}

	// 其余操作符要求字段存在
	if !exists {
		return false, fmt.Sprintf("%v", expected)
	}

	switch operator {
	case "equals":
		return equalValues(value, expected), cast.ToString(expected)
	case "not_equals":
		return !equalValues(value, expected), fmt.Sprintf("!= %v", expected)
	case "greater_than":
		cmp, ok := compareOrdered(value, expected)
		return ok && cmp > 0, fmt.Sprintf("> %v", expected)
	case "less_than":
		cmp, ok := compareOrdered(value, expected)
		return ok && cmp < 0, fmt.Sprintf("< %v", expected)
	case "greater_equals":
		cmp, ok := compareOrdered(value, expected)
		return ok && cmp >= 0, fmt.Sprintf(">= %v", expected)
	case "less_equals":
		cmp, ok := compareOrdered(value, expected)
		return ok && cmp <= 0, fmt.Sprintf("<= %v", expected)
	case "contains":
		return strings.Contains(cast.ToString(value), cast.ToString(expected)), fmt.Sprintf("包含 %v", expected)
	case "not_contains":
		return !strings.Contains(cast.ToString(value), cast.ToString(expected)), fmt.Sprintf("不包含 %v", expected)
	case "starts_with":
		return strings.HasPrefix(cast.ToString(value), cast.ToString(expected)), fmt.Sprintf("以 %v 开头", expected)
	case "ends_with":
		return strings.HasSuffix(cast.ToString(value), cast.ToString(expected)), fmt.Sprintf("以 %v 结尾", expected)
	case "in":
		return valueInList(value, expected), fmt.Sprintf("在 %v 中", expected)
	case "not_in":
		return !valueInList(value, expected), fmt.Sprintf("不在 %v 中", expected)
	case "matches_pattern":
		pattern := cast.ToString(expected)
		regex, err := e.compilePattern(pattern)
		if err != nil {
			return false, pattern
		}
		return regex.MatchString(cast.ToString(value)), fmt.Sprintf("匹配模式 %s", pattern)
	default:
		return false, fmt.Sprintf("%v", expected)
	}
}

// compilePattern 编译并缓存正则表达式
func (e *ConditionEvaluator) compilePattern(pattern string) (*regexp.Regexp, error) {
	e.mu.RLock()
	regex, ok := e.patternCache[pattern]
	e.mu.RUnlock()
	if ok {
		return regex, nil
	}

	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.patternCache[pattern] = regex
	e.mu.Unlock()
	return regex, nil
}

// equalValues 比较两个值是否相等，优先数值比较，回退到字符串比较
func equalValues(a, b interface{}) bool {
	if na, err := cast.ToFloat64E(a); err == nil {
		if nb, err := cast.ToFloat64E(b); err == nil {
			return na == nb
		}
	}
	return cast.ToString(a) == cast.ToString(b)
}

// compareOrdered 比较两个值的大小，优先数值比较，回退到字符串比较
// 返回 -1/0/1 及是否可比较
func compareOrdered(a, b interface{}) (int, bool) {
	na, errA := cast.ToFloat64E(a)
	nb, errB := cast.ToFloat64E(b)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}

	sa := cast.ToString(a)
	sb := cast.ToString(b)
	return strings.Compare(sa, sb), true
}

// valueInList 判断值是否在列表中
func valueInList(value, list interface{}) bool {
	items, ok := list.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if equalValues(value, item) {
			return true
		}
	}
	return false
}

// formatValue 格式化字段值用于违规记录
func formatValue(value interface{}, exists bool) string {
	if !exists {
		return "<缺失>"
	}
	if value == nil {
		return "<空>"
	}
	return cast.ToString(value)
}

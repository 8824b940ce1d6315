/*
 * @module service/validation/rule_service_test
 * @description 校验规则存储服务测试，覆盖增删改查、分页钳制、启停切换与模板实例化
 * @architecture 测试层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 测试环境初始化 -> 规则操作 -> 结果验证
 * @rules 条件结构不合法时拒绝写入；启停切换不改动历史统计
 * @dependencies testing, github.com/stretchr/testify
 * @refs rule_service.go, template_service.go
 */

package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vbkg-validation-service/service/models"
	"vbkg-validation-service/testutil"
)

func newRuleServiceForTest(t *testing.T) (*RuleService, *testutil.TestDB) {
	t.Helper()
	tdb := testutil.NewTestDB()
	evaluator := NewConditionEvaluator(nil)
	return NewRuleService(tdb.DB, evaluator), tdb
}

// TestCreateRuleDefaults 测试创建规则时的默认值与钳制
func TestCreateRuleDefaults(t *testing.T) {
	svc, _ := newRuleServiceForTest(t)

	rule, err := svc.CreateRule(&CreateRuleRequest{
		Name:              "姓名必填",
		Category:          CategoryCompleteness,
		RuleType:          RuleTypeFieldValidation,
		TargetEntityTypes: []string{"person"},
		Conditions:        map[string]interface{}{"field": "name", "operator": "is_not_empty"},
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.True(t, rule.IsActive)
	assert.Equal(t, SeverityMedium, rule.Severity)
	assert.Equal(t, ModeOnDemand, rule.ExecutionMode)
	assert.Equal(t, models.DefaultBatchSize, rule.BatchSize)
	assert.Equal(t, models.DefaultTimeout, rule.TimeoutSeconds)
}

// TestCreateRuleClampsLimits 测试批大小与超时超出边界时被钳制
func TestCreateRuleClampsLimits(t *testing.T) {
	svc, _ := newRuleServiceForTest(t)

	rule, err := svc.CreateRule(&CreateRuleRequest{
		Name:              "超界规则",
		Category:          CategoryCompleteness,
		RuleType:          RuleTypeFieldValidation,
		TargetEntityTypes: []string{"person"},
		Conditions:        map[string]interface{}{"field": "name", "operator": "exists"},
		BatchSize:         999999,
		TimeoutSeconds:    999999,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.MaxBatchSize, rule.BatchSize)
	assert.Equal(t, models.MaxTimeoutSeconds, rule.TimeoutSeconds)
}

// TestCreateRuleInvalidConditions 条件结构不合法时拒绝创建，不产生部分写
func TestCreateRuleInvalidConditions(t *testing.T) {
	svc, tdb := newRuleServiceForTest(t)

	_, err := svc.CreateRule(&CreateRuleRequest{
		Name:              "坏规则",
		Category:          CategoryCompleteness,
		RuleType:          RuleTypeFieldValidation,
		TargetEntityTypes: []string{"person"},
		Conditions:        map[string]interface{}{"field": "name"},
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConditionShape))

	var count int64
	tdb.DB.Model(&models.ValidationRule{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

// TestCreateRuleInvalidEnums 测试枚举取值校验
func TestCreateRuleInvalidEnums(t *testing.T) {
	svc, _ := newRuleServiceForTest(t)

	_, err := svc.CreateRule(&CreateRuleRequest{
		Name:              "坏枚举",
		Category:          "beauty",
		RuleType:          RuleTypeFieldValidation,
		TargetEntityTypes: []string{"person"},
		Conditions:        map[string]interface{}{"field": "name", "operator": "exists"},
	})
	assert.Error(t, err)
}

// TestListRulesPagination 测试分页与上限钳制
func TestListRulesPagination(t *testing.T) {
	svc, tdb := newRuleServiceForTest(t)

	for i := 0; i < 25; i++ {
		tdb.CreateTestRule("规则", RuleTypeFieldValidation,
			models.JSONB{"field": "name", "operator": "exists"})
	}

	// 默认每页20
	rules, total, err := svc.ListRules(&RuleListFilter{})
	assert.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, rules, DefaultListLimit)

	// 超出上限被钳制
	rules, _, err = svc.ListRules(&RuleListFilter{Limit: 99999})
	assert.NoError(t, err)
	assert.Len(t, rules, 25)
}

// TestListRulesFilters 测试按维度与启用状态过滤
func TestListRulesFilters(t *testing.T) {
	svc, tdb := newRuleServiceForTest(t)

	active := tdb.CreateTestRule("激活规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})
	inactive := tdb.CreateTestRule("停用规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})
	tdb.DB.Model(inactive).Update("is_active", false)

	isActive := true
	rules, total, err := svc.ListRules(&RuleListFilter{IsActive: &isActive})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, active.ID, rules[0].ID)
}

// TestListRulesEntityTypeFilterPaginates 实体类型过滤先于分页生效
func TestListRulesEntityTypeFilterPaginates(t *testing.T) {
	svc, _ := newRuleServiceForTest(t)

	mustCreate := func(name string, types []string) *models.ValidationRule {
		rule, err := svc.CreateRule(&CreateRuleRequest{
			Name:              name,
			Category:          CategoryCompleteness,
			RuleType:          RuleTypeFieldValidation,
			TargetEntityTypes: types,
			Conditions:        map[string]interface{}{"field": "name", "operator": "exists"},
		})
		assert.NoError(t, err)
		return rule
	}

	person := mustCreate("人员规则", []string{"person"})
	for i := 0; i < 3; i++ {
		mustCreate("机构规则", []string{"org"})
	}

	// 总数与首页都按过滤后的集合计算
	rules, total, err := svc.ListRules(&RuleListFilter{EntityType: "person", Limit: 2})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, rules, 1)
	assert.Equal(t, person.ID, rules[0].ID)

	// 通配规则同样命中过滤
	mustCreate("通配规则", []string{"*"})
	rules, total, err = svc.ListRules(&RuleListFilter{EntityType: "person", Limit: 1, Offset: 1})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rules, 1)

	// 越过末尾返回空页，总数不变
	rules, total, err = svc.ListRules(&RuleListFilter{EntityType: "person", Offset: 10})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rules, 0)
}

// TestUpdateRulePartial 测试部分更新与条件重新校验
func TestUpdateRulePartial(t *testing.T) {
	svc, tdb := newRuleServiceForTest(t)
	rule := tdb.CreateTestRule("原规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	// 只改名称，条件不变
	updated, err := svc.UpdateRule(rule.ID, &UpdateRuleRequest{Name: "新名称"})
	assert.NoError(t, err)
	assert.Equal(t, "新名称", updated.Name)
	assert.Equal(t, "exists", updated.Conditions["operator"])

	// 非法条件被拒绝
	_, err = svc.UpdateRule(rule.ID, &UpdateRuleRequest{
		Conditions: map[string]interface{}{"field": "name", "operator": "bad_op"},
	})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConditionShape))

	// 拒绝后原条件保持不变
	current, err := svc.GetRuleByID(rule.ID)
	assert.NoError(t, err)
	assert.Equal(t, "exists", current.Conditions["operator"])
}

// TestToggleRulePreservesCounters 测试启停切换不改动历史统计
func TestToggleRulePreservesCounters(t *testing.T) {
	svc, tdb := newRuleServiceForTest(t)
	rule := tdb.CreateTestRule("统计规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	now := time.Now()
	tdb.DB.Model(rule).Updates(map[string]interface{}{
		"execution_count":  7,
		"violation_count":  3,
		"success_rate":     0.85,
		"last_executed_at": now,
	})

	toggled, err := svc.ToggleRule(rule.ID)
	assert.NoError(t, err)
	assert.False(t, toggled.IsActive)
	assert.Equal(t, int64(7), toggled.ExecutionCount)
	assert.Equal(t, int64(3), toggled.ViolationCount)
	assert.InDelta(t, 0.85, toggled.SuccessRate, 1e-9)

	toggled, err = svc.ToggleRule(rule.ID)
	assert.NoError(t, err)
	assert.True(t, toggled.IsActive)
}

// TestDeleteRule 测试删除规则
func TestDeleteRule(t *testing.T) {
	svc, tdb := newRuleServiceForTest(t)
	rule := tdb.CreateTestRule("待删除", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	assert.NoError(t, svc.DeleteRule(rule.ID))

	_, err := svc.GetRuleByID(rule.ID)
	assert.True(t, errors.Is(err, ErrRuleNotFound))

	err = svc.DeleteRule("missing-id")
	assert.True(t, errors.Is(err, ErrRuleNotFound))
}

// TestGetRuleNotFound 测试规则不存在
func TestGetRuleNotFound(t *testing.T) {
	svc, _ := newRuleServiceForTest(t)
	_, err := svc.GetRuleByID("no-such-id")
	assert.True(t, errors.Is(err, ErrRuleNotFound))
}

// TestInstantiateFromTemplate 测试模板实例化并递增使用计数
func TestInstantiateFromTemplate(t *testing.T) {
	svc, tdb := newRuleServiceForTest(t)
	templates := NewTemplateService(tdb.DB)
	assert.NoError(t, templates.SeedBuiltinTemplates())

	var tpl models.ValidationRuleTemplate
	assert.NoError(t, tdb.DB.First(&tpl, "name = ?", "必填字段检查").Error)
	assert.Equal(t, int64(0), tpl.UsageCount)

	rule, err := svc.InstantiateFromTemplate(tpl.ID, &InstantiateTemplateRequest{
		Name:              "身份证号必填",
		TargetEntityTypes: []string{"person"},
		ConditionOverrides: map[string]interface{}{
			"field": "id_number",
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, tpl.RuleType, rule.RuleType)
	assert.Equal(t, tpl.Category, rule.Category)
	assert.Equal(t, tpl.ID, rule.TemplateID)
	assert.Equal(t, "id_number", rule.Conditions["field"])
	assert.Equal(t, "is_not_empty", rule.Conditions["operator"])

	// 使用计数在同一事务内递增
	var after models.ValidationRuleTemplate
	assert.NoError(t, tdb.DB.First(&after, "id = ?", tpl.ID).Error)
	assert.Equal(t, int64(1), after.UsageCount)
}

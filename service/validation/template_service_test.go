/*
 * @module service/validation/template_service_test
 * @description 规则模板服务测试，覆盖内置模板初始化幂等性与内置不可变约束
 * @architecture 测试层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 初始化内置模板 -> 操作验证
 * @rules 内置模板初始化幂等；内置模板不可修改或删除
 * @dependencies testing, github.com/stretchr/testify
 * @refs template_service.go
 */

package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbkg-validation-service/service/models"
	"vbkg-validation-service/testutil"
)

// TestSeedBuiltinTemplatesIdempotent 内置模板初始化幂等
func TestSeedBuiltinTemplatesIdempotent(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewTemplateService(tdb.DB)

	require.NoError(t, svc.SeedBuiltinTemplates())
	require.NoError(t, svc.SeedBuiltinTemplates())

	var count int64
	tdb.DB.Model(&models.ValidationRuleTemplate{}).Where("is_builtin = ?", true).Count(&count)
	assert.Equal(t, int64(5), count)
}

// TestBuiltinTemplatesShapeValid 每个内置模板的条件模板都通过结构校验
func TestBuiltinTemplatesShapeValid(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewTemplateService(tdb.DB)
	require.NoError(t, svc.SeedBuiltinTemplates())

	evaluator := NewConditionEvaluator(nil)

	var templates []models.ValidationRuleTemplate
	require.NoError(t, tdb.DB.Where("is_builtin = ?", true).Find(&templates).Error)
	require.Len(t, templates, 5)

	for _, tpl := range templates {
		assert.NoError(t, evaluator.ValidateConditionShape(tpl.RuleType, tpl.ConditionsTemplate),
			"模板 %s 的条件模板结构不合法", tpl.Name)
	}
}

// TestBuiltinTemplateImmutable 内置模板不可修改或删除
func TestBuiltinTemplateImmutable(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewTemplateService(tdb.DB)
	require.NoError(t, svc.SeedBuiltinTemplates())

	var tpl models.ValidationRuleTemplate
	require.NoError(t, tdb.DB.First(&tpl, "is_builtin = ?", true).Error)

	_, err := svc.UpdateTemplate(tpl.ID, map[string]interface{}{"name": "改名"})
	assert.True(t, errors.Is(err, ErrTemplateImmutable))

	err = svc.DeleteTemplate(tpl.ID)
	assert.True(t, errors.Is(err, ErrTemplateImmutable))
}

// TestCustomTemplateLifecycle 自定义模板的创建、更新与删除
func TestCustomTemplateLifecycle(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewTemplateService(tdb.DB)

	template := &models.ValidationRuleTemplate{
		Name:     "手机号格式检查",
		Category: CategoryAccuracy,
		RuleType: RuleTypeFormatValidation,
		ConditionsTemplate: models.JSONB{
			"field":    "phone",
			"operator": "matches_pattern",
			"value":    `^1[3-9]\d{9}$`,
		},
		DefaultSeverity: SeverityMedium,
		// 外部请求无法伪装成内置模板
		IsBuiltin: true,
	}
	require.NoError(t, svc.CreateTemplate(template))
	assert.False(t, template.IsBuiltin)

	updated, err := svc.UpdateTemplate(template.ID, map[string]interface{}{
		"description": "校验大陆手机号",
		// 受保护字段被忽略
		"is_builtin":  true,
		"usage_count": 99,
	})
	require.NoError(t, err)
	assert.Equal(t, "校验大陆手机号", updated.Description)
	assert.False(t, updated.IsBuiltin)
	assert.Equal(t, int64(0), updated.UsageCount)

	require.NoError(t, svc.DeleteTemplate(template.ID))

	_, err = svc.GetTemplateByID(template.ID)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

// TestTemplateNotFoundSentinel 不存在的模板统一返回未找到错误
func TestTemplateNotFoundSentinel(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewTemplateService(tdb.DB)
	rules := NewRuleService(tdb.DB, NewConditionEvaluator(nil))

	_, err := svc.GetTemplateByID("no-such-template")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	_, err = svc.UpdateTemplate("no-such-template", map[string]interface{}{"name": "x"})
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	err = svc.DeleteTemplate("no-such-template")
	assert.True(t, errors.Is(err, ErrTemplateNotFound))

	_, err = rules.InstantiateFromTemplate("no-such-template", &InstantiateTemplateRequest{
		Name:              "无模板规则",
		TargetEntityTypes: []string{"person"},
	})
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
}

// TestListTemplatesFilter 模板列表按维度和类型过滤
func TestListTemplatesFilter(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewTemplateService(tdb.DB)
	require.NoError(t, svc.SeedBuiltinTemplates())

	templates, err := svc.ListTemplates(CategoryCompleteness, "")
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, "必填字段检查", templates[0].Name)

	templates, err = svc.ListTemplates("", RuleTypeUniquenessCheck)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, RuleTypeUniquenessCheck, templates[0].RuleType)
}

/*
 * @module service/validation/template_service
 * @description 校验规则模板服务，内置模板初始化与模板的增删改查
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 服务启动时初始化内置模板 -> 按名称幂等跳过已存在项
 * @rules 内置模板不可修改或删除；模板实例化时使用计数与规则创建同事务递增
 * @dependencies gorm.io/gorm
 * @refs service/models/validation_rule.go, service/validation/rule_service.go
 */

package validation

import (
	"errors"
	"log/slog"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"vbkg-validation-service/service/models"
)

// TemplateService 校验规则模板服务
type TemplateService struct {
	db *gorm.DB
}

// NewTemplateService 创建规则模板服务实例
func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{db: db}
}

// builtinTemplates 内置规则模板定义
func builtinTemplates() []models.ValidationRuleTemplate {
	return []models.ValidationRuleTemplate{
		{
			Name:        "必填字段检查",
			Description: "检查指定字段存在且非空",
			Category:    CategoryCompleteness,
			RuleType:    RuleTypeFieldValidation,
			ConditionsTemplate: models.JSONB{
				"field":    "name",
				"operator": "is_not_empty",
			},
			DefaultSeverity:     SeverityHigh,
			DefaultErrorMessage: "必填字段缺失或为空",
			ApplicableTypes:     pq.StringArray{"*"},
			IsBuiltin:           true,
		},
		{
			Name:        "邮箱格式检查",
			Description: "检查字段值符合邮箱格式",
			Category:    CategoryAccuracy,
			RuleType:    RuleTypeFormatValidation,
			ConditionsTemplate: models.JSONB{
				"field":    "email",
				"operator": "matches_pattern",
				"value":    `^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`,
			},
			DefaultSeverity:     SeverityMedium,
			DefaultErrorMessage: "邮箱格式不正确",
			ApplicableTypes:     pq.StringArray{"*"},
			IsBuiltin:           true,
		},
		{
			Name:        "字段唯一性检查",
			Description: "检查字段值在同类实体中全局唯一",
			Category:    CategoryUniqueness,
			RuleType:    RuleTypeUniquenessCheck,
			ConditionsTemplate: models.JSONB{
				"field":    "code",
				"operator": "unique",
				"scope":    "global",
			},
			DefaultSeverity:     SeverityHigh,
			DefaultErrorMessage: "字段值存在重复",
			ApplicableTypes:     pq.StringArray{"*"},
			IsBuiltin:           true,
		},
		{
			Name:        "日期区间检查",
			Description: "检查起始日期不晚于结束日期",
			Category:    CategoryConsistency,
			RuleType:    RuleTypeBusinessLogic,
			ConditionsTemplate: models.JSONB{
				"logic_type":  "range_check",
				"start_field": "start_date",
				"end_field":   "end_date",
			},
			DefaultSeverity:     SeverityMedium,
			DefaultErrorMessage: "起始日期晚于结束日期",
			ApplicableTypes:     pq.StringArray{"*"},
			IsBuiltin:           true,
		},
		{
			Name:        "关系端点检查",
			Description: "检查关系类型匹配且两端实体存在",
			Category:    CategoryValidity,
			RuleType:    RuleTypeRelationshipValidation,
			ConditionsTemplate: models.JSONB{
				"relationship_type": "belongs_to",
			},
			DefaultSeverity:     SeverityHigh,
			DefaultErrorMessage: "关系端点缺失或类型不匹配",
			ApplicableTypes:     pq.StringArray{"*"},
			IsBuiltin:           true,
		},
	}
}

// SeedBuiltinTemplates 初始化内置模板，按名称幂等
func (s *TemplateService) SeedBuiltinTemplates() error {
	for _, tpl := range builtinTemplates() {
		var count int64
		if err := s.db.Model(&models.ValidationRuleTemplate{}).
			Where("name = ? AND is_builtin = ?", tpl.Name, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		tplCopy := tpl
		if err := s.db.Create(&tplCopy).Error; err != nil {
			return err
		}
		slog.Info("内置规则模板已创建", "name", tpl.Name, "rule_type", tpl.RuleType)
	}
	return nil
}

// ListTemplates 获取规则模板列表
func (s *TemplateService) ListTemplates(category, ruleType string) ([]models.ValidationRuleTemplate, error) {
	var templates []models.ValidationRuleTemplate
	query := s.db.Model(&models.ValidationRuleTemplate{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if ruleType != "" {
		query = query.Where("rule_type = ?", ruleType)
	}
	if err := query.Order("is_builtin DESC, usage_count DESC").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// GetTemplateByID 根据ID获取规则模板
func (s *TemplateService) GetTemplateByID(id string) (*models.ValidationRuleTemplate, error) {
	var template models.ValidationRuleTemplate
	if err := s.db.First(&template, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &template, nil
}

// CreateTemplate 创建自定义规则模板
func (s *TemplateService) CreateTemplate(template *models.ValidationRuleTemplate) error {
	template.IsBuiltin = false
	return s.db.Create(template).Error
}

// UpdateTemplate 更新自定义规则模板，内置模板不可修改
func (s *TemplateService) UpdateTemplate(id string, updates map[string]interface{}) (*models.ValidationRuleTemplate, error) {
	template, err := s.GetTemplateByID(id)
	if err != nil {
		return nil, err
	}
	if template.IsBuiltin {
		return nil, ErrTemplateImmutable
	}

	delete(updates, "is_builtin")
	delete(updates, "usage_count")
	if err := s.db.Model(&models.ValidationRuleTemplate{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetTemplateByID(id)
}

// DeleteTemplate 删除自定义规则模板，内置模板不可删除
func (s *TemplateService) DeleteTemplate(id string) error {
	template, err := s.GetTemplateByID(id)
	if err != nil {
		return err
	}
	if template.IsBuiltin {
		return ErrTemplateImmutable
	}
	return s.db.Delete(&models.ValidationRuleTemplate{}, "id = ?", id).Error
}

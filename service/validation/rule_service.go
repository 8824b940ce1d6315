/*
 * @module service/validation/rule_service
 * @description 校验规则存储服务，提供规则的增删改查、启停切换和模板实例化
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 条件结构校验 -> 事务写入 -> 返回
 * @rules 条件结构不合法时拒绝写入且不产生部分写；启停切换不改动历史统计
 * @dependencies gorm.io/gorm
 * @refs service/models/validation_rule.go, service/validation/condition_evaluator.go
 */

package validation

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"vbkg-validation-service/service/models"
)

// 列表分页上限
const (
	DefaultListLimit = 20
	MaxListLimit     = 1000
)

// RuleService 校验规则存储服务
type RuleService struct {
	db        *gorm.DB
	evaluator *ConditionEvaluator
}

// NewRuleService 创建校验规则存储服务实例
func NewRuleService(db *gorm.DB, evaluator *ConditionEvaluator) *RuleService {
	return &RuleService{db: db, evaluator: evaluator}
}

// CreateRule 创建校验规则
func (s *RuleService) CreateRule(req *CreateRuleRequest) (*models.ValidationRule, error) {
	if err := validateEnum(req.Category, ValidCategories, "质量维度"); err != nil {
		return nil, err
	}
	if err := validateEnum(req.RuleType, ValidRuleTypes, "规则类型"); err != nil {
		return nil, err
	}
	if req.Severity != "" {
		if err := validateEnum(req.Severity, ValidSeverities, "严重级别"); err != nil {
			return nil, err
		}
	}
	if req.ExecutionMode != "" {
		if err := validateEnum(req.ExecutionMode, ValidExecutionModes, "执行模式"); err != nil {
			return nil, err
		}
	}
	if len(req.TargetEntityTypes) == 0 {
		return nil, fmt.Errorf("目标实体类型不能为空")
	}

	conditions := models.JSONB(req.Conditions)
	if err := s.evaluator.ValidateConditionShape(req.RuleType, conditions); err != nil {
		return nil, err
	}

	rule := &models.ValidationRule{
		Name:                    req.Name,
		Description:             req.Description,
		Category:                req.Category,
		RuleType:                req.RuleType,
		IsActive:                true,
		Severity:                req.Severity,
		TargetEntityTypes:       pq.StringArray(req.TargetEntityTypes),
		TargetRelationshipTypes: pq.StringArray(req.TargetRelationshipTypes),
		Conditions:              conditions,
		ErrorMessage:            req.ErrorMessage,
		ExecutionMode:           req.ExecutionMode,
		BatchSize:               req.BatchSize,
		TimeoutSeconds:          req.TimeoutSeconds,
		ScheduleCron:            req.ScheduleCron,
		Tags:                    models.JSONBStringArray(req.Tags),
		Documentation:           req.Documentation,
		Examples:                models.JSONB(req.Examples),
		CreatedBy:               req.CreatedBy,
	}
	if rule.Severity == "" {
		rule.Severity = SeverityMedium
	}
	if rule.ExecutionMode == "" {
		rule.ExecutionMode = ModeOnDemand
	}
	if rule.BatchSize == 0 {
		rule.BatchSize = models.DefaultBatchSize
	}
	if rule.TimeoutSeconds == 0 {
		rule.TimeoutSeconds = models.DefaultTimeout
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := s.db.Create(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

// GetRuleByID 根据ID获取校验规则
func (s *RuleService) GetRuleByID(id string) (*models.ValidationRule, error) {
	var rule models.ValidationRule
	if err := s.db.First(&rule, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// ListRules 分页获取校验规则列表
func (s *RuleService) ListRules(filter *RuleListFilter) ([]models.ValidationRule, int64, error) {
	var rules []models.ValidationRule
	var total int64

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := s.db.Model(&models.ValidationRule{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.RuleType != "" {
		query = query.Where("rule_type = ?", filter.RuleType)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	// 实体类型过滤需要考虑通配符，先在内存中收敛全集，再分页
	if filter.EntityType != "" {
		var all []models.ValidationRule
		if err := query.Order("created_at DESC").Find(&all).Error; err != nil {
			return nil, 0, err
		}
		matched := make([]models.ValidationRule, 0, len(all))
		for _, rule := range all {
			if rule.MatchesEntityType(filter.EntityType) {
				matched = append(matched, rule)
			}
		}
		total = int64(len(matched))
		if offset >= len(matched) {
			return []models.ValidationRule{}, total, nil
		}
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		return matched[offset:end], total, nil
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Offset(offset).Limit(limit).Order("created_at DESC").Find(&rules).Error; err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}

// ListRulesByIDs 按ID集合获取规则
func (s *RuleService) ListRulesByIDs(ids []string) ([]models.ValidationRule, error) {
	var rules []models.ValidationRule
	if err := s.db.Where("id IN ?", ids).Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// SelectRules 按质量维度和实体类型选择激活规则，用于批量执行和管道门禁
func (s *RuleService) SelectRules(category, entityType string) ([]models.ValidationRule, error) {
	var rules []models.ValidationRule
	query := s.db.Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Find(&rules).Error; err != nil {
		return nil, err
	}

	if entityType == "" {
		return rules, nil
	}

	matched := make([]models.ValidationRule, 0, len(rules))
	for _, rule := range rules {
		if rule.MatchesEntityType(entityType) {
			matched = append(matched, rule)
		}
	}
	return matched, nil
}

// UpdateRule 部分更新校验规则
// 条件结构校验失败时整体拒绝，不产生部分写
func (s *RuleService) UpdateRule(id string, req *UpdateRuleRequest) (*models.ValidationRule, error) {
	rule, err := s.GetRuleByID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Category != "" {
		if err := validateEnum(req.Category, ValidCategories, "质量维度"); err != nil {
			return nil, err
		}
		updates["category"] = req.Category
	}
	if req.Severity != "" {
		if err := validateEnum(req.Severity, ValidSeverities, "严重级别"); err != nil {
			return nil, err
		}
		updates["severity"] = req.Severity
	}
	if req.ExecutionMode != "" {
		if err := validateEnum(req.ExecutionMode, ValidExecutionModes, "执行模式"); err != nil {
			return nil, err
		}
		updates["execution_mode"] = req.ExecutionMode
	}
	if len(req.TargetEntityTypes) > 0 {
		updates["target_entity_types"] = pq.StringArray(req.TargetEntityTypes)
	}
	if len(req.TargetRelationshipTypes) > 0 {
		updates["target_relationship_types"] = pq.StringArray(req.TargetRelationshipTypes)
	}
	if req.Conditions != nil {
		conditions := models.JSONB(req.Conditions)
		if err := s.evaluator.ValidateConditionShape(rule.RuleType, conditions); err != nil {
			return nil, err
		}
		updates["conditions"] = conditions
	}
	if req.ErrorMessage != nil {
		updates["error_message"] = *req.ErrorMessage
	}
	if req.BatchSize != nil {
		updates["batch_size"] = clampInt(*req.BatchSize, models.MinBatchSize, models.MaxBatchSize)
	}
	if req.TimeoutSeconds != nil {
		updates["timeout_seconds"] = clampInt(*req.TimeoutSeconds, models.MinTimeoutSeconds, models.MaxTimeoutSeconds)
	}
	if req.ScheduleCron != nil {
		updates["schedule_cron"] = *req.ScheduleCron
	}
	if req.Tags != nil {
		updates["tags"] = models.JSONBStringArray(req.Tags)
	}
	if req.Documentation != nil {
		updates["documentation"] = *req.Documentation
	}
	if req.Examples != nil {
		updates["examples"] = models.JSONB(req.Examples)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.UpdatedBy != "" {
		updates["updated_by"] = req.UpdatedBy
	}

	if len(updates) == 0 {
		return rule, nil
	}

	if err := s.db.Model(&models.ValidationRule{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetRuleByID(id)
}

// DeleteRule 删除校验规则
func (s *RuleService) DeleteRule(id string) error {
	result := s.db.Delete(&models.ValidationRule{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// ToggleRule 切换规则启停状态，历史统计保持不变
func (s *RuleService) ToggleRule(id string) (*models.ValidationRule, error) {
	rule, err := s.GetRuleByID(id)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.ValidationRule{}).Where("id = ?", id).
		Update("is_active", !rule.IsActive).Error; err != nil {
		return nil, err
	}
	return s.GetRuleByID(id)
}

// InstantiateFromTemplate 从模板实例化规则
// 复制条件模板与默认值，同一事务内递增模板使用计数
func (s *RuleService) InstantiateFromTemplate(templateID string, req *InstantiateTemplateRequest) (*models.ValidationRule, error) {
	var template models.ValidationRuleTemplate
	if err := s.db.First(&template, "id = ?", templateID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	conditions := make(models.JSONB, len(template.ConditionsTemplate))
	for k, v := range template.ConditionsTemplate {
		conditions[k] = v
	}
	for k, v := range req.ConditionOverrides {
		conditions[k] = v
	}

	if err := s.evaluator.ValidateConditionShape(template.RuleType, conditions); err != nil {
		return nil, err
	}

	severity := req.Severity
	if severity == "" {
		severity = template.DefaultSeverity
	}

	rule := &models.ValidationRule{
		Name:              req.Name,
		Description:       req.Description,
		Category:          template.Category,
		RuleType:          template.RuleType,
		IsActive:          true,
		Severity:          severity,
		TargetEntityTypes: pq.StringArray(req.TargetEntityTypes),
		Conditions:        conditions,
		ErrorMessage:      template.DefaultErrorMessage,
		ExecutionMode:     ModeOnDemand,
		TemplateID:        template.ID,
		CreatedBy:         req.CreatedBy,
	}
	if rule.Description == "" {
		rule.Description = template.Description
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rule).Error; err != nil {
			return err
		}
		return tx.Model(&models.ValidationRuleTemplate{}).Where("id = ?", template.ID).
			Update("usage_count", gorm.Expr("usage_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// validateEnum 校验枚举取值
func validateEnum(value string, valid []string, label string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("无效的%s: %s", label, value)
}

// clampInt 将整数钳制到区间内
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

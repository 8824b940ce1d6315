/*
 * @module service/models/validation_rule
 * @description 数据质量校验规则相关模型定义，包括校验规则和规则模板
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 规则创建 -> 激活 -> 执行 -> 统计更新
 * @rules 规则条件结构必须符合规则类型的约束，批量大小和超时时间在持久化前被钳制到合法区间
 * @dependencies gorm.io/gorm, github.com/google/uuid, github.com/lib/pq
 * @refs service/validation/condition_evaluator.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// 批量大小与超时时间的合法区间
const (
	MinBatchSize      = 1
	MaxBatchSize      = 10000
	DefaultBatchSize  = 1000
	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 3600
	DefaultTimeout    = 300
)

// ValidationRule 数据质量校验规则模型
type ValidationRule struct {
	ID                      string         `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name                    string         `gorm:"type:varchar(100);not null" json:"name"`
	Description             string         `gorm:"type:text" json:"description"`
	Category                string         `gorm:"type:varchar(30);not null;index" json:"category"`  // completeness/accuracy/consistency/validity/uniqueness/timeliness/relevance
	RuleType                string         `gorm:"type:varchar(30);not null" json:"rule_type"`       // field_validation/format_validation/business_logic/uniqueness_check/relationship_validation/custom_validation
	IsActive                bool           `gorm:"not null;default:true;index" json:"is_active"`
	Severity                string         `gorm:"type:varchar(20);not null;default:'medium';index" json:"severity"` // low/medium/high/critical
	TargetEntityTypes       pq.StringArray `gorm:"type:text[]" json:"target_entity_types"`                           // "*" 表示全部实体类型
	TargetRelationshipTypes pq.StringArray `gorm:"type:text[]" json:"target_relationship_types,omitempty"`
	Conditions              JSONB          `gorm:"type:jsonb;not null" json:"conditions"`
	ErrorMessage            string         `gorm:"type:text" json:"error_message"`
	ExecutionMode           string         `gorm:"type:varchar(20);not null;default:'on_demand'" json:"execution_mode"` // on_demand/real_time/batch/scheduled
	BatchSize               int            `gorm:"not null;default:1000" json:"batch_size"`
	TimeoutSeconds          int            `gorm:"not null;default:300" json:"timeout_seconds"`
	ScheduleCron            string         `gorm:"type:varchar(100)" json:"schedule_cron,omitempty"` // scheduled 模式的 cron 表达式
	Tags                    JSONBStringArray `gorm:"type:jsonb" json:"tags"`
	Documentation           string         `gorm:"type:text" json:"documentation"`
	Examples                JSONB          `gorm:"type:jsonb" json:"examples"`
	TemplateID              string         `gorm:"type:varchar(50);index" json:"template_id,omitempty"` // 从模板实例化时记录来源
	ExecutionCount          int64          `gorm:"default:0" json:"execution_count"`
	ViolationCount          int64          `gorm:"default:0" json:"violation_count"`
	SuccessRate             float64        `gorm:"default:0" json:"success_rate"`
	LastExecutedAt          *time.Time     `json:"last_executed_at,omitempty"`
	AverageExecutionTime    float64        `gorm:"default:0" json:"average_execution_time"` // 毫秒
	CreatedBy               string         `gorm:"type:varchar(50)" json:"created_by"`
	UpdatedBy               string         `gorm:"type:varchar(50)" json:"updated_by"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (ValidationRule) TableName() string {
	return "validation_rules"
}

// BeforeCreate 创建前钩子
func (r *ValidationRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedBy == "" {
		r.CreatedBy = "system"
	}
	if r.UpdatedBy == "" {
		r.UpdatedBy = "system"
	}
	r.ClampLimits()
	return nil
}

// BeforeUpdate 更新前钩子
func (r *ValidationRule) BeforeUpdate(tx *gorm.DB) error {
	if r.UpdatedBy == "" {
		r.UpdatedBy = "system"
	}
	return nil
}

// ClampLimits 将批量大小和超时时间钳制到合法区间
func (r *ValidationRule) ClampLimits() {
	if r.BatchSize < MinBatchSize {
		r.BatchSize = MinBatchSize
	}
	if r.BatchSize > MaxBatchSize {
		r.BatchSize = MaxBatchSize
	}
	if r.TimeoutSeconds < MinTimeoutSeconds {
		r.TimeoutSeconds = MinTimeoutSeconds
	}
	if r.TimeoutSeconds > MaxTimeoutSeconds {
		r.TimeoutSeconds = MaxTimeoutSeconds
	}
}

// MatchesEntityType 判断规则是否适用于指定实体类型
func (r *ValidationRule) MatchesEntityType(entityType string) bool {
	for _, t := range r.TargetEntityTypes {
		if t == "*" || t == entityType {
			return true
		}
	}
	return false
}

// ValidationRuleTemplate 校验规则模板模型
type ValidationRuleTemplate struct {
	ID                  string         `gorm:"type:varchar(50);primaryKey" json:"id"`
	Name                string         `gorm:"type:varchar(100);not null" json:"name"`
	Description         string         `gorm:"type:text" json:"description"`
	Category            string         `gorm:"type:varchar(30);not null" json:"category"`
	RuleType            string         `gorm:"type:varchar(30);not null" json:"rule_type"`
	ConditionsTemplate  JSONB          `gorm:"type:jsonb;not null" json:"conditions_template"`
	DefaultSeverity     string         `gorm:"type:varchar(20);not null;default:'medium'" json:"default_severity"`
	DefaultErrorMessage string         `gorm:"type:text" json:"default_error_message"`
	ApplicableTypes     pq.StringArray `gorm:"type:text[]" json:"applicable_types"` // 适用的实体类型
	UsageCount          int64          `gorm:"default:0" json:"usage_count"`
	IsBuiltin           bool           `gorm:"default:false" json:"is_builtin"`
	Tags                JSONBStringArray `gorm:"type:jsonb" json:"tags"`
	CreatedBy           string         `gorm:"type:varchar(50)" json:"created_by"`
	UpdatedBy           string         `gorm:"type:varchar(50)" json:"updated_by"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (ValidationRuleTemplate) TableName() string {
	return "validation_rule_templates"
}

// BeforeCreate 创建前钩子
func (t *ValidationRuleTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedBy == "" {
		t.CreatedBy = "system"
	}
	if t.UpdatedBy == "" {
		t.UpdatedBy = "system"
	}
	return nil
}

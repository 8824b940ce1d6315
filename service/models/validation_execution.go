/*
 * @module service/models/validation_execution
 * @description 校验执行记录与违规记录模型定义
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow pending -> running -> completed/failed/cancelled，终态后记录不可变
 * @rules 违规记录引用执行与规则但不拥有它们；严重级别在检出时从规则继承，之后不再重算
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/validation/executor.go, service/validation/violation_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 执行状态
const (
	ExecutionStatusPending   = "pending"
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusCancelled = "cancelled"
)

// 违规状态
const (
	ViolationStatusOpen          = "open"
	ViolationStatusResolved      = "resolved"
	ViolationStatusIgnored       = "ignored"
	ViolationStatusFalsePositive = "false_positive"
)

// ValidationRuleExecution 校验规则执行记录模型
type ValidationRuleExecution struct {
	ID                   string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	RuleID               string     `gorm:"type:varchar(50);not null;index" json:"rule_id"`
	PipelineRunID        string     `gorm:"type:varchar(50);index" json:"pipeline_run_id,omitempty"`
	Status               string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	StartTime            *time.Time `json:"start_time,omitempty"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	ExecutionTime        int64      `json:"execution_time"` // 毫秒
	EntitiesChecked      int64      `json:"entities_checked"`
	RelationshipsChecked int64      `json:"relationships_checked"`
	ViolationsFound      int64      `json:"violations_found"`
	ViolationsDetails    JSONB      `gorm:"type:jsonb" json:"violations_details"` // 每批次的违规摘要
	ErrorMessage         string     `gorm:"type:text" json:"error_message,omitempty"`
	TriggeredBy          string     `gorm:"type:varchar(50)" json:"triggered_by"`
	ExecutionContext     JSONB      `gorm:"type:jsonb" json:"execution_context"`
	ConditionsSnapshot   JSONB      `gorm:"type:jsonb" json:"conditions_snapshot"` // 认领时捕获的条件快照
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (ValidationRuleExecution) TableName() string {
	return "validation_rule_executions"
}

// BeforeCreate 创建前钩子
func (e *ValidationRuleExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Status == "" {
		e.Status = ExecutionStatusPending
	}
	if e.TriggeredBy == "" {
		e.TriggeredBy = "system"
	}
	return nil
}

// IsTerminal 判断执行是否已进入终态
func (e *ValidationRuleExecution) IsTerminal() bool {
	return e.Status == ExecutionStatusCompleted ||
		e.Status == ExecutionStatusFailed ||
		e.Status == ExecutionStatusCancelled
}

// ValidationViolation 校验违规记录模型
type ValidationViolation struct {
	ID               string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	RuleExecutionID  string     `gorm:"type:varchar(50);not null;index" json:"rule_execution_id"`
	RuleID           string     `gorm:"type:varchar(50);not null;index" json:"rule_id"`
	EntityID         string     `gorm:"type:varchar(50);index" json:"entity_id,omitempty"`
	RelationshipID   string     `gorm:"type:varchar(50);index" json:"relationship_id,omitempty"`
	ViolationType    string     `gorm:"type:varchar(50);not null" json:"violation_type"`
	Severity         string     `gorm:"type:varchar(20);not null;index" json:"severity"` // 检出时从规则继承
	Message          string     `gorm:"type:text;not null" json:"message"`
	FieldName        string     `gorm:"type:varchar(100)" json:"field_name"`
	ExpectedValue    string     `gorm:"type:text" json:"expected_value"`
	ActualValue      string     `gorm:"type:text" json:"actual_value"`
	Status           string     `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	ResolutionAction string     `gorm:"type:varchar(50)" json:"resolution_action,omitempty"`
	ResolvedBy       string     `gorm:"type:varchar(50)" json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionNotes  string     `gorm:"type:text" json:"resolution_notes,omitempty"`
	ContextData      JSONB      `gorm:"type:jsonb" json:"context_data"`
	Suggestions      JSONBGenericArray `gorm:"type:jsonb" json:"suggestions"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (ValidationViolation) TableName() string {
	return "validation_violations"
}

// BeforeCreate 创建前钩子
func (v *ValidationViolation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	if v.Status == "" {
		v.Status = ViolationStatusOpen
	}
	return nil
}

// RulePerformance 规则执行统计模型，按规则维护滚动统计
type RulePerformance struct {
	RuleID           string     `gorm:"type:varchar(50);primaryKey" json:"rule_id"`
	TotalExecutions  int64      `gorm:"default:0" json:"total_executions"`
	FailedExecutions int64      `gorm:"default:0" json:"failed_executions"`
	ExecutionTimeSum int64      `gorm:"default:0" json:"execution_time_sum"` // 毫秒累计
	TotalViolations  int64      `gorm:"default:0" json:"total_violations"`
	SuccessRate      float64    `gorm:"default:0" json:"success_rate"`
	LastExecutedAt   *time.Time `json:"last_executed_at,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (RulePerformance) TableName() string {
	return "rule_performances"
}

// AvgExecutionTime 计算平均执行时间（毫秒）
func (p *RulePerformance) AvgExecutionTime() float64 {
	if p.TotalExecutions == 0 {
		return 0
	}
	return float64(p.ExecutionTimeSum) / float64(p.TotalExecutions)
}

// PerformanceEvent 已聚合执行事件的幂等标记
// 以执行ID为主键，重复回放同一执行的完成事件时插入冲突，聚合器据此跳过
type PerformanceEvent struct {
	ExecutionID string    `gorm:"type:varchar(50);primaryKey" json:"execution_id"`
	RuleID      string    `gorm:"type:varchar(50);not null;index" json:"rule_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName 指定表名
func (PerformanceEvent) TableName() string {
	return "rule_performance_events"
}

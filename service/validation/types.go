/*
 * @module service/validation/types
 * @description 数据质量校验引擎的类型定义，包含枚举、错误分类和请求响应模型
 * @architecture 服务层 - 类型定义
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 业务数据结构定义
 * @rules 枚举值属于线上契约，必须与管理控制台的 schema 完全一致
 * @dependencies time
 * @refs service/models/validation_rule.go, service/models/validation_execution.go
 */

package validation

import (
	"errors"
	"time"

	"vbkg-validation-service/service/models"
)

// 规则类型
const (
	RuleTypeFieldValidation        = "field_validation"
	RuleTypeFormatValidation       = "format_validation"
	RuleTypeBusinessLogic          = "business_logic"
	RuleTypeUniquenessCheck        = "uniqueness_check"
	RuleTypeRelationshipValidation = "relationship_validation"
	RuleTypeCustomValidation       = "custom_validation"
)

// 质量维度分类
const (
	CategoryCompleteness = "completeness"
	CategoryAccuracy     = "accuracy"
	CategoryConsistency  = "consistency"
	CategoryValidity     = "validity"
	CategoryUniqueness   = "uniqueness"
	CategoryTimeliness   = "timeliness"
	CategoryRelevance    = "relevance"
)

// 严重级别
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// 执行模式
const (
	ModeOnDemand  = "on_demand"
	ModeRealTime  = "real_time"
	ModeBatch     = "batch"
	ModeScheduled = "scheduled"
)

// ValidRuleTypes 合法的规则类型集合
var ValidRuleTypes = []string{
	RuleTypeFieldValidation,
	RuleTypeFormatValidation,
	RuleTypeBusinessLogic,
	RuleTypeUniquenessCheck,
	RuleTypeRelationshipValidation,
	RuleTypeCustomValidation,
}

// ValidCategories 合法的质量维度集合
var ValidCategories = []string{
	CategoryCompleteness,
	CategoryAccuracy,
	CategoryConsistency,
	CategoryValidity,
	CategoryUniqueness,
	CategoryTimeliness,
	CategoryRelevance,
}

// ValidSeverities 合法的严重级别集合
var ValidSeverities = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// ValidExecutionModes 合法的执行模式集合
var ValidExecutionModes = []string{ModeOnDemand, ModeRealTime, ModeBatch, ModeScheduled}

// 错误分类
var (
	// ErrInvalidConditionShape 条件结构不符合规则类型的约束，规则创建/更新被拒绝
	ErrInvalidConditionShape = errors.New("条件结构不符合规则类型约束")
	// ErrRuleNotFound 规则不存在
	ErrRuleNotFound = errors.New("校验规则不存在")
	// ErrExecutionNotFound 执行记录不存在
	ErrExecutionNotFound = errors.New("执行记录不存在")
	// ErrViolationNotFound 违规记录不存在
	ErrViolationNotFound = errors.New("违规记录不存在")
	// ErrExecutionTimeout 执行超时，仅对该次执行致命
	ErrExecutionTimeout = errors.New("校验执行超时")
	// ErrEvaluatorFault 自定义校验钩子失败，仅对该次执行致命
	ErrEvaluatorFault = errors.New("自定义校验钩子执行失败")
	// ErrConcurrentClaim 执行已被其他运行器认领，调用方不应盲目重试
	ErrConcurrentClaim = errors.New("执行已被其他运行器认领")
	// ErrTemplateNotFound 规则模板不存在
	ErrTemplateNotFound = errors.New("规则模板不存在")
	// ErrTemplateImmutable 内置模板不可修改
	ErrTemplateImmutable = errors.New("内置模板不可修改")
	// ErrExecutionNotCancellable 执行已处于终态，无法取消
	ErrExecutionNotCancellable = errors.New("执行已处于终态，无法取消")
)

// ValidationCondition 单条校验条件，规则条件 JSONB 的强类型视图
type ValidationCondition struct {
	Field           string        `json:"field,omitempty"`
	Operator        string        `json:"operator,omitempty"`
	Value           interface{}   `json:"value,omitempty"`
	Scope           string        `json:"scope,omitempty"`
	StartField      string        `json:"start_field,omitempty"`      // business_logic 区间规则
	EndField        string        `json:"end_field,omitempty"`        // business_logic 区间规则
	RelationshipType string       `json:"relationship_type,omitempty"` // relationship_validation
	ValidationRules []interface{} `json:"validation_rules,omitempty"`  // relationship_validation 子规则
	Script          string        `json:"script,omitempty"`            // custom_validation 脚本
}

// === 规则管理相关类型 ===

// CreateRuleRequest 创建校验规则请求
type CreateRuleRequest struct {
	Name                    string                 `json:"name" binding:"required" example:"人员身份证号唯一性"`
	Description             string                 `json:"description" example:"同类型实体的身份证号字段不允许重复"`
	Category                string                 `json:"category" binding:"required" example:"uniqueness" enums:"completeness,accuracy,consistency,validity,uniqueness,timeliness,relevance"`
	RuleType                string                 `json:"rule_type" binding:"required" example:"uniqueness_check" enums:"field_validation,format_validation,business_logic,uniqueness_check,relationship_validation,custom_validation"`
	Severity                string                 `json:"severity" example:"high" enums:"low,medium,high,critical"`
	TargetEntityTypes       []string               `json:"target_entity_types" binding:"required"`
	TargetRelationshipTypes []string               `json:"target_relationship_types,omitempty"`
	Conditions              map[string]interface{} `json:"conditions" binding:"required" swaggertype:"object"`
	ErrorMessage            string                 `json:"error_message"`
	ExecutionMode           string                 `json:"execution_mode" example:"batch" enums:"on_demand,real_time,batch,scheduled"`
	BatchSize               int                    `json:"batch_size" example:"1000"`
	TimeoutSeconds          int                    `json:"timeout_seconds" example:"300"`
	ScheduleCron            string                 `json:"schedule_cron,omitempty" example:"0 0 2 * * *"`
	Tags                    []string               `json:"tags,omitempty"`
	Documentation           string                 `json:"documentation,omitempty"`
	Examples                map[string]interface{} `json:"examples,omitempty" swaggertype:"object"`
	IsActive                *bool                  `json:"is_active,omitempty"`
	CreatedBy               string                 `json:"created_by,omitempty"`
}

// UpdateRuleRequest 更新校验规则请求（部分更新）
type UpdateRuleRequest struct {
	Name                    string                 `json:"name,omitempty"`
	Description             *string                `json:"description,omitempty"`
	Category                string                 `json:"category,omitempty"`
	Severity                string                 `json:"severity,omitempty"`
	TargetEntityTypes       []string               `json:"target_entity_types,omitempty"`
	TargetRelationshipTypes []string               `json:"target_relationship_types,omitempty"`
	Conditions              map[string]interface{} `json:"conditions,omitempty" swaggertype:"object"`
	ErrorMessage            *string                `json:"error_message,omitempty"`
	ExecutionMode           string                 `json:"execution_mode,omitempty"`
	BatchSize               *int                   `json:"batch_size,omitempty"`
	TimeoutSeconds          *int                   `json:"timeout_seconds,omitempty"`
	ScheduleCron            *string                `json:"schedule_cron,omitempty"`
	Tags                    []string               `json:"tags,omitempty"`
	Documentation           *string                `json:"documentation,omitempty"`
	Examples                map[string]interface{} `json:"examples,omitempty" swaggertype:"object"`
	IsActive                *bool                  `json:"is_active,omitempty"`
	UpdatedBy               string                 `json:"updated_by,omitempty"`
}

// RuleListFilter 规则列表过滤条件
type RuleListFilter struct {
	Category   string
	Severity   string
	IsActive   *bool
	EntityType string
	RuleType   string
	Limit      int
	Offset     int
}

// === 执行相关类型 ===

// ExecuteRuleRequest 执行单条规则请求
type ExecuteRuleRequest struct {
	PipelineRunID    string                 `json:"pipeline_run_id,omitempty"`
	TriggeredBy      string                 `json:"triggered_by" example:"admin"`
	ExecutionContext map[string]interface{} `json:"execution_context,omitempty" swaggertype:"object"`
}

// ExecuteBatchRequest 批量执行规则请求，rule_ids 与 category+entity_type 二选一
type ExecuteBatchRequest struct {
	RuleIDs          []string               `json:"rule_ids,omitempty"`
	Category         string                 `json:"category,omitempty"`
	EntityType       string                 `json:"entity_type,omitempty"`
	PipelineRunID    string                 `json:"pipeline_run_id,omitempty"`
	TriggeredBy      string                 `json:"triggered_by"`
	ExecutionContext map[string]interface{} `json:"execution_context,omitempty" swaggertype:"object"`
}

// BatchExecuteResponse 批量执行确认响应
type BatchExecuteResponse struct {
	Message      string   `json:"message" example:"已提交 3 条规则执行"`
	ExecutionIDs []string `json:"execution_ids"`
}

// === 违规相关类型 ===

// ViolationListFilter 违规列表过滤条件
type ViolationListFilter struct {
	RuleID   string
	Status   string
	Severity string
	Limit    int
	Offset   int
}

// UpdateViolationRequest 更新单条违规请求
type UpdateViolationRequest struct {
	Status           string `json:"status" binding:"required" enums:"open,resolved,ignored,false_positive"`
	ResolutionAction string `json:"resolution_action,omitempty"`
	ResolutionNotes  string `json:"resolution_notes,omitempty"`
	ResolvedBy       string `json:"resolved_by,omitempty"`
}

// BulkUpdateViolationsRequest 批量更新违规请求
type BulkUpdateViolationsRequest struct {
	ViolationIDs     []string `json:"violation_ids" binding:"required"`
	Status           string   `json:"status" binding:"required" enums:"open,resolved,ignored,false_positive"`
	ResolutionAction string   `json:"resolution_action,omitempty"`
	ResolutionNotes  string   `json:"resolution_notes,omitempty"`
	ResolvedBy       string   `json:"resolved_by,omitempty"`
}

// BulkUpdateViolationsResponse 批量更新违规响应
type BulkUpdateViolationsResponse struct {
	UpdatedCount int64 `json:"updated_count"`
}

// === 模板相关类型 ===

// InstantiateTemplateRequest 从模板实例化规则请求
type InstantiateTemplateRequest struct {
	Name              string                 `json:"name" binding:"required"`
	Description       string                 `json:"description,omitempty"`
	TargetEntityTypes []string               `json:"target_entity_types" binding:"required"`
	Severity          string                 `json:"severity,omitempty"`
	ConditionOverrides map[string]interface{} `json:"condition_overrides,omitempty" swaggertype:"object"`
	CreatedBy         string                 `json:"created_by,omitempty"`
}

// === 仪表板相关类型 ===

// DashboardSummary 质量仪表板汇总
type DashboardSummary struct {
	TotalRules         int64   `json:"total_rules"`
	ActiveRules        int64   `json:"active_rules"`
	RecentViolations   int64   `json:"recent_violations"` // 最近24小时
	AvgSuccessRate     float64 `json:"avg_success_rate"`
	CriticalViolations int64   `json:"critical_violations"`
	OpenViolations     int64   `json:"open_violations"`
}

// RulePerformanceView 单条规则的性能视图
type RulePerformanceView struct {
	RuleID               string     `json:"rule_id"`
	RuleName             string     `json:"rule_name"`
	TotalExecutions      int64      `json:"total_executions"`
	AvgExecutionTime     float64    `json:"avg_execution_time"` // 毫秒
	TotalViolations      int64      `json:"total_violations"`
	SuccessRate          float64    `json:"success_rate"`
	LastExecutedAt       *time.Time `json:"last_executed_at,omitempty"`
}

// === 评估相关类型 ===

// TargetRecord 待校验的目标记录，实体或关系统一抽象为属性映射
type TargetRecord struct {
	ID               string
	IsRelationship   bool
	EntityType       string
	RelationshipType string
	Properties       map[string]interface{}
	SourceEntityID   string
	TargetEntityID   string
}

// EvalResult 单条记录的评估结果
type EvalResult struct {
	Passed        bool
	Message       string
	FieldName     string
	ExpectedValue string
	ActualValue   string
}

// BatchSummary 单个批次的执行摘要，写入执行记录的 violations_details
type BatchSummary struct {
	BatchIndex      int   `json:"batch_index"`
	RecordsChecked  int64 `json:"records_checked"`
	ViolationsFound int64 `json:"violations_found"`
}

// ruleToSnapshot 将规则条件转为执行快照
func ruleToSnapshot(rule *models.ValidationRule) models.JSONB {
	snapshot := make(models.JSONB, len(rule.Conditions))
	for k, v := range rule.Conditions {
		snapshot[k] = v
	}
	return snapshot
}

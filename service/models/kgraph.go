/*
 * @module service/models/kgraph
 * @description 知识图谱实体、关系与摄取管道相关模型定义
 * @architecture 分层架构 - 数据模型层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 管道运行创建 -> 步骤执行 -> 校验门禁 -> 完成
 * @rules 实体与关系以 JSONB 属性映射承载图谱数据，校验引擎只读扫描
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/kgraph/provider.go, service/pipeline/integration_service.go
 */

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 管道步骤类型
const (
	StepTypeIngest         = "ingest"
	StepTypeTransform      = "transform"
	StepTypeValidationGate = "validation_gate"
)

// KGEntity 知识图谱实体模型
type KGEntity struct {
	ID         string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	EntityType string    `gorm:"type:varchar(100);not null;index" json:"entity_type"`
	Name       string    `gorm:"type:varchar(200)" json:"name"`
	Properties JSONB     `gorm:"type:jsonb" json:"properties"`
	SourceID   string    `gorm:"type:varchar(50);index" json:"source_id,omitempty"` // 来源数据源
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (KGEntity) TableName() string {
	return "kg_entities"
}

// BeforeCreate 创建前钩子
func (e *KGEntity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// KGRelationship 知识图谱关系模型
type KGRelationship struct {
	ID               string    `gorm:"type:varchar(50);primaryKey" json:"id"`
	RelationshipType string    `gorm:"type:varchar(100);not null;index" json:"relationship_type"`
	SourceEntityID   string    `gorm:"type:varchar(50);not null;index" json:"source_entity_id"`
	TargetEntityID   string    `gorm:"type:varchar(50);not null;index" json:"target_entity_id"`
	Properties       JSONB     `gorm:"type:jsonb" json:"properties"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 指定表名
func (KGRelationship) TableName() string {
	return "kg_relationships"
}

// BeforeCreate 创建前钩子
func (r *KGRelationship) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// PipelineRun 摄取管道运行记录模型
type PipelineRun struct {
	ID         string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	PipelineID string     `gorm:"type:varchar(50);not null;index" json:"pipeline_id"`
	Status     string     `gorm:"type:varchar(20);not null;default:'running'" json:"status"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`
	Context    JSONB      `gorm:"type:jsonb" json:"context"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// BeforeCreate 创建前钩子
func (p *PipelineRun) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// PipelineStep 管道步骤模型，校验门禁以 validation_gate 类型步骤挂载到管道
type PipelineStep struct {
	ID         string           `gorm:"type:varchar(50);primaryKey" json:"id"`
	PipelineID string           `gorm:"type:varchar(50);not null;index" json:"pipeline_id"`
	StepType   string           `gorm:"type:varchar(30);not null" json:"step_type"` // ingest/transform/validation_gate
	Name       string           `gorm:"type:varchar(100);not null" json:"name"`
	StepOrder  int              `gorm:"default:0" json:"step_order"`
	RuleIDs    JSONBStringArray `gorm:"type:jsonb" json:"rule_ids"` // validation_gate 步骤绑定的规则集合
	Config     JSONB            `gorm:"type:jsonb" json:"config"`
	IsEnabled  bool             `gorm:"default:true" json:"is_enabled"`
	CreatedBy  string           `gorm:"type:varchar(50)" json:"created_by"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// TableName 指定表名
func (PipelineStep) TableName() string {
	return "pipeline_steps"
}

// BeforeCreate 创建前钩子
func (s *PipelineStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedBy == "" {
		s.CreatedBy = "system"
	}
	return nil
}

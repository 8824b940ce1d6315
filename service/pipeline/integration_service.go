/*
 * @module service/pipeline/integration_service
 * @description 摄取管道集成服务，将规则集合以校验门禁步骤挂载到管道并在运行时触发批量校验
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 创建门禁步骤 -> 管道运行到达门禁 -> 解析规则集合 -> 批量执行并携带运行ID
 * @rules 门禁绑定规则集合支持显式ID列表或质量维度+实体类型动态选择，二选一
 * @dependencies gorm.io/gorm
 * @refs service/models/kgraph.go, service/validation/executor.go
 */

package pipeline

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vbkg-validation-service/service/models"
	"vbkg-validation-service/service/validation"
)

// ErrGateNotFound 校验门禁不存在
var ErrGateNotFound = errors.New("校验门禁不存在")

// CreateGateRequest 创建校验门禁请求
type CreateGateRequest struct {
	PipelineID string   `json:"pipeline_id" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	StepOrder  int      `json:"step_order"`
	RuleIDs    []string `json:"rule_ids,omitempty"`
	Category   string   `json:"category,omitempty"`
	EntityType string   `json:"entity_type,omitempty"`
	CreatedBy  string   `json:"created_by,omitempty"`
}

// RunGateRequest 触发校验门禁请求
type RunGateRequest struct {
	PipelineRunID string `json:"pipeline_run_id" binding:"required"`
	TriggeredBy   string `json:"triggered_by,omitempty"`
}

// IntegrationService 管道集成服务
type IntegrationService struct {
	db       *gorm.DB
	rules    *validation.RuleService
	executor *validation.Executor
}

// NewIntegrationService 创建管道集成服务实例
func NewIntegrationService(db *gorm.DB, rules *validation.RuleService, executor *validation.Executor) *IntegrationService {
	return &IntegrationService{db: db, rules: rules, executor: executor}
}

// CreateGate 在管道上挂载校验门禁步骤
func (s *IntegrationService) CreateGate(req *CreateGateRequest) (*models.PipelineStep, error) {
	if len(req.RuleIDs) == 0 && req.Category == "" {
		return nil, fmt.Errorf("必须指定 rule_ids 或 category")
	}
	if len(req.RuleIDs) > 0 && req.Category != "" {
		return nil, fmt.Errorf("rule_ids 与 category 只能指定其一")
	}

	step := &models.PipelineStep{
		PipelineID: req.PipelineID,
		StepType:   models.StepTypeValidationGate,
		Name:       req.Name,
		StepOrder:  req.StepOrder,
		RuleIDs:    models.JSONBStringArray(req.RuleIDs),
		IsEnabled:  true,
		CreatedBy:  req.CreatedBy,
	}
	if req.Category != "" {
		step.Config = models.JSONB{
			"category":    req.Category,
			"entity_type": req.EntityType,
		}
	}

	if err := s.db.Create(step).Error; err != nil {
		return nil, err
	}
	return step, nil
}

// ListGates 获取管道的校验门禁列表
func (s *IntegrationService) ListGates(pipelineID string) ([]models.PipelineStep, error) {
	var steps []models.PipelineStep
	query := s.db.Where("step_type = ?", models.StepTypeValidationGate)
	if pipelineID != "" {
		query = query.Where("pipeline_id = ?", pipelineID)
	}
	if err := query.Order("step_order").Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

// GetGateByID 根据ID获取校验门禁
func (s *IntegrationService) GetGateByID(id string) (*models.PipelineStep, error) {
	var step models.PipelineStep
	if err := s.db.First(&step, "id = ? AND step_type = ?", id, models.StepTypeValidationGate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGateNotFound
		}
		return nil, err
	}
	return &step, nil
}

// DeleteGate 删除校验门禁
func (s *IntegrationService) DeleteGate(id string) error {
	result := s.db.Where("step_type = ?", models.StepTypeValidationGate).
		Delete(&models.PipelineStep{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrGateNotFound
	}
	return nil
}

// RunGate 触发校验门禁，解析绑定的规则集合并批量执行
// 执行记录携带管道运行ID，便于按运行追溯校验结果
func (s *IntegrationService) RunGate(gateID string, req *RunGateRequest) (*validation.BatchExecuteResponse, error) {
	gate, err := s.GetGateByID(gateID)
	if err != nil {
		return nil, err
	}
	if !gate.IsEnabled {
		return nil, fmt.Errorf("校验门禁 %s 已禁用", gate.Name)
	}

	rules, err := s.resolveGateRules(gate)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return &validation.BatchExecuteResponse{Message: "门禁未匹配到任何激活规则"}, nil
	}

	triggeredBy := req.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = "pipeline"
	}
	return s.executor.ExecuteBatch(rules, &validation.ExecuteBatchRequest{
		PipelineRunID: req.PipelineRunID,
		TriggeredBy:   triggeredBy,
		ExecutionContext: map[string]interface{}{
			"gate_id":     gate.ID,
			"gate_name":   gate.Name,
			"pipeline_id": gate.PipelineID,
		},
	})
}

// resolveGateRules 解析门禁绑定的规则集合
func (s *IntegrationService) resolveGateRules(gate *models.PipelineStep) ([]models.ValidationRule, error) {
	if len(gate.RuleIDs) > 0 {
		rules, err := s.rules.ListRulesByIDs(gate.RuleIDs)
		if err != nil {
			return nil, err
		}
		active := make([]models.ValidationRule, 0, len(rules))
		for _, rule := range rules {
			if rule.IsActive {
				active = append(active, rule)
			}
		}
		return active, nil
	}

	category, _ := gate.Config["category"].(string)
	entityType, _ := gate.Config["entity_type"].(string)
	return s.rules.SelectRules(category, entityType)
}

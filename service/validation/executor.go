/*
 * @module service/validation/executor
 * @description 校验规则执行器，负责执行生命周期管理、分批扫描评估与违规落库
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow pending -> running -> completed/failed/cancelled，认领通过条件更新完成
 * @rules 条件快照在认领时落库；批次间协作式响应取消；超时按失败终结；终结幂等
 * @dependencies gorm.io/gorm, github.com/google/uuid
 * @refs service/validation/condition_evaluator.go, service/kgraph/provider.go
 */

package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"vbkg-validation-service/service/models"
)

// DataProvider 图谱数据只读访问接口
type DataProvider interface {
	CountEntities(ctx context.Context, entityTypes []string) (int64, error)
	FetchEntityBatch(ctx context.Context, entityTypes []string, offset, limit int) ([]TargetRecord, error)
	FetchRelationshipBatch(ctx context.Context, relationshipTypes []string, offset, limit int) ([]TargetRecord, error)
	EntityExists(ctx context.Context, entityID string) (bool, error)
}

// ExecutionNotifier 执行结果通知接口，实现方尽力投递
type ExecutionNotifier interface {
	NotifyExecutionFinished(execution *models.ValidationRuleExecution)
	NotifyViolations(ruleID, ruleName, severity string, count int64)
}

// Executor 校验规则执行器
type Executor struct {
	db        *gorm.DB
	evaluator *ConditionEvaluator
	provider  DataProvider
	perf      *PerformanceService
	notifier  ExecutionNotifier

	cancels *cancelRegistry
}

// NewExecutor 创建校验规则执行器
func NewExecutor(db *gorm.DB, evaluator *ConditionEvaluator, provider DataProvider, perf *PerformanceService, notifier ExecutionNotifier) *Executor {
	return &Executor{
		db:        db,
		evaluator: evaluator,
		provider:  provider,
		perf:      perf,
		notifier:  notifier,
		cancels:   newCancelRegistry(),
	}
}

// CreateExecution 创建待执行记录
func (e *Executor) CreateExecution(rule *models.ValidationRule, req *ExecuteRuleRequest) (*models.ValidationRuleExecution, error) {
	execution := &models.ValidationRuleExecution{
		RuleID:           rule.ID,
		Status:           models.ExecutionStatusPending,
		TriggeredBy:      req.TriggeredBy,
		PipelineRunID:    req.PipelineRunID,
		ExecutionContext: models.JSONB(req.ExecutionContext),
	}
	if execution.TriggeredBy == "" {
		execution.TriggeredBy = "system"
	}
	if err := e.db.Create(execution).Error; err != nil {
		return nil, err
	}
	return execution, nil
}

// GetExecutionByID 根据ID获取执行记录
func (e *Executor) GetExecutionByID(id string) (*models.ValidationRuleExecution, error) {
	var execution models.ValidationRuleExecution
	if err := e.db.First(&execution, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutionNotFound
		}
		return nil, err
	}
	return &execution, nil
}

// ListExecutions 分页获取执行记录列表
func (e *Executor) ListExecutions(ruleID, status string, limit, offset int) ([]models.ValidationRuleExecution, int64, error) {
	var executions []models.ValidationRuleExecution
	var total int64

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := e.db.Model(&models.ValidationRuleExecution{})
	if ruleID != "" {
		query = query.Where("rule_id = ?", ruleID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&executions).Error; err != nil {
		return nil, 0, err
	}
	return executions, total, nil
}

// StartExecution 认领并同步执行
// 认领通过条件更新完成，未改动任何行说明已被其他运行器取走
func (e *Executor) StartExecution(ctx context.Context, executionID string) error {
	execution, err := e.GetExecutionByID(executionID)
	if err != nil {
		return err
	}

	var rule models.ValidationRule
	if err := e.db.First(&rule, "id = ?", execution.RuleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRuleNotFound
		}
		return err
	}

	now := time.Now()
	result := e.db.Model(&models.ValidationRuleExecution{}).
		Where("id = ? AND status = ?", executionID, models.ExecutionStatusPending).
		Updates(map[string]interface{}{
			"status":              models.ExecutionStatusRunning,
			"start_time":          now,
			"conditions_snapshot": ruleToSnapshot(&rule),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentClaim
	}

	execution.Status = models.ExecutionStatusRunning
	execution.StartTime = &now
	execution.ConditionsSnapshot = ruleToSnapshot(&rule)

	return e.run(ctx, execution, &rule)
}

// run 执行主循环，从快照解析条件并分批扫描
func (e *Executor) run(ctx context.Context, execution *models.ValidationRuleExecution, rule *models.ValidationRule) error {
	rule.ClampLimits()
	timeout := time.Duration(rule.TimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	e.cancels.register(execution.ID, cancel)
	defer e.cancels.unregister(execution.ID)

	cond, err := ParseCondition(execution.ConditionsSnapshot)
	if err != nil {
		return e.finalize(execution, rule, models.ExecutionStatusFailed, err.Error())
	}

	var runErr error
	switch rule.RuleType {
	case RuleTypeUniquenessCheck:
		runErr = e.runUniqueness(runCtx, execution, rule, cond)
	case RuleTypeRelationshipValidation:
		runErr = e.runScan(runCtx, execution, rule, cond, true)
	default:
		runErr = e.runScan(runCtx, execution, rule, cond, false)
	}

	switch {
	case runErr == nil:
		return e.finalize(execution, rule, models.ExecutionStatusCompleted, "")
	case errors.Is(runErr, context.DeadlineExceeded):
		return e.finalize(execution, rule, models.ExecutionStatusFailed, ErrExecutionTimeout.Error())
	case errors.Is(runErr, context.Canceled):
		return e.finalize(execution, rule, models.ExecutionStatusCancelled, "")
	default:
		return e.finalize(execution, rule, models.ExecutionStatusFailed, runErr.Error())
	}
}

// runScan 分批扫描实体或关系，逐批评估并落库违规
func (e *Executor) runScan(ctx context.Context, execution *models.ValidationRuleExecution, rule *models.ValidationRule, cond *ValidationCondition, relationships bool) error {
	offset := 0
	batchIndex := 0
	summaries := make([]BatchSummary, 0)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var batch []TargetRecord
		var err error
		if relationships {
			batch, err = e.provider.FetchRelationshipBatch(ctx, rule.TargetRelationshipTypes, offset, rule.BatchSize)
		} else {
			batch, err = e.provider.FetchEntityBatch(ctx, rule.TargetEntityTypes, offset, rule.BatchSize)
		}
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		violations := make([]models.ValidationViolation, 0)
		for i := range batch {
			record := &batch[i]
			result, evalErr := e.evaluator.Evaluate(ctx, rule.RuleType, cond, record)
			if evalErr != nil {
				return evalErr
			}
			if !result.Passed {
				violations = append(violations, e.buildViolation(execution, rule, record, result))
			}
		}

		if err := e.flushBatch(execution, rule, violations, int64(len(batch)), relationships); err != nil {
			return err
		}

		summaries = append(summaries, BatchSummary{
			BatchIndex:      batchIndex,
			RecordsChecked:  int64(len(batch)),
			ViolationsFound: int64(len(violations)),
		})
		batchIndex++
		offset += len(batch)
		if len(batch) < rule.BatchSize {
			break
		}
	}

	execution.ViolationsDetails = models.JSONB{"batches": summaries}
	return nil
}

// runUniqueness 两遍法唯一性检查
// 第一遍扫描建立字段值到出现记录的映射，第二遍对每个重复值标记首次出现之外的记录
func (e *Executor) runUniqueness(ctx context.Context, execution *models.ValidationRuleExecution, rule *models.ValidationRule, cond *ValidationCondition) error {
	groups := make(map[string][]string)
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := e.provider.FetchEntityBatch(ctx, rule.TargetEntityTypes, offset, rule.BatchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			record := &batch[i]
			value, exists := record.Properties[cond.Field]
			if !exists || value == nil {
				continue
			}
			repr := fmt.Sprintf("%v", value)
			groups[repr] = append(groups[repr], record.ID)
		}

		if err := e.flushBatch(execution, rule, nil, int64(len(batch)), false); err != nil {
			return err
		}
		offset += len(batch)
		if len(batch) < rule.BatchSize {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// 每个重复值保留首次出现，其余 n-1 条记为违规
	violations := make([]models.ValidationViolation, 0)
	for repr, recordIDs := range groups {
		if len(recordIDs) < 2 {
			continue
		}
		for _, recordID := range recordIDs[1:] {
			violations = append(violations, models.ValidationViolation{
				RuleExecutionID: execution.ID,
				RuleID:          rule.ID,
				EntityID:        recordID,
				ViolationType:   rule.RuleType,
				Severity:        rule.Severity,
				Message:         e.violationMessage(rule, fmt.Sprintf("字段 %s 的值 %s 存在重复", cond.Field, repr)),
				FieldName:       cond.Field,
				ExpectedValue:   "唯一值",
				ActualValue:     repr,
				Status:          models.ViolationStatusOpen,
			})
		}
	}

	return e.flushBatch(execution, rule, violations, 0, false)
}

// buildViolation 由评估结果构造违规记录
func (e *Executor) buildViolation(execution *models.ValidationRuleExecution, rule *models.ValidationRule, record *TargetRecord, result *EvalResult) models.ValidationViolation {
	violation := models.ValidationViolation{
		RuleExecutionID: execution.ID,
		RuleID:          rule.ID,
		ViolationType:   rule.RuleType,
		Severity:        rule.Severity,
		Message:         e.violationMessage(rule, result.Message),
		FieldName:       result.FieldName,
		ExpectedValue:   result.ExpectedValue,
		ActualValue:     result.ActualValue,
		Status:          models.ViolationStatusOpen,
		ContextData: models.JSONB{
			"entity_type":       record.EntityType,
			"relationship_type": record.RelationshipType,
		},
	}
	if record.IsRelationship {
		violation.RelationshipID = record.ID
	} else {
		violation.EntityID = record.ID
	}
	return violation
}

// violationMessage 规则配置的错误消息优先于评估产生的消息
func (e *Executor) violationMessage(rule *models.ValidationRule, fallback string) string {
	if rule.ErrorMessage != "" {
		return rule.ErrorMessage
	}
	return fallback
}

// flushBatch 单批事务落库：插入违规并推进执行进度
func (e *Executor) flushBatch(execution *models.ValidationRuleExecution, rule *models.ValidationRule, violations []models.ValidationViolation, checked int64, relationships bool) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		if len(violations) > 0 {
			if err := tx.Create(&violations).Error; err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"violations_found": gorm.Expr("violations_found + ?", len(violations)),
		}
		if checked > 0 {
			if relationships {
				updates["relationships_checked"] = gorm.Expr("relationships_checked + ?", checked)
			} else {
				updates["entities_checked"] = gorm.Expr("entities_checked + ?", checked)
			}
		}
		if err := tx.Model(&models.ValidationRuleExecution{}).
			Where("id = ?", execution.ID).Updates(updates).Error; err != nil {
			return err
		}

		execution.ViolationsFound += int64(len(violations))
		if relationships {
			execution.RelationshipsChecked += checked
		} else {
			execution.EntitiesChecked += checked
		}
		return nil
	})
}

// finalize 终结执行，条件更新保证只终结一次
func (e *Executor) finalize(execution *models.ValidationRuleExecution, rule *models.ValidationRule, status, errorMessage string) error {
	now := time.Now()
	var elapsed int64
	if execution.StartTime != nil {
		elapsed = now.Sub(*execution.StartTime).Milliseconds()
	}

	updates := map[string]interface{}{
		"status":         status,
		"end_time":       now,
		"execution_time": elapsed,
		"error_message":  errorMessage,
	}
	if execution.ViolationsDetails != nil {
		updates["violations_details"] = execution.ViolationsDetails
	}

	result := e.db.Model(&models.ValidationRuleExecution{}).
		Where("id = ? AND status = ?", execution.ID, models.ExecutionStatusRunning).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// 已被他处终结，不重复聚合
		return nil
	}

	execution.Status = status
	execution.EndTime = &now
	execution.ExecutionTime = elapsed
	execution.ErrorMessage = errorMessage

	if err := e.perf.RecordExecution(execution, rule); err != nil {
		slog.Error("执行性能聚合失败", "execution_id", execution.ID, "error", err)
	}

	if e.notifier != nil {
		e.notifier.NotifyExecutionFinished(execution)
		if execution.ViolationsFound > 0 {
			e.notifier.NotifyViolations(rule.ID, rule.Name, rule.Severity, execution.ViolationsFound)
		}
	}

	slog.Info("校验执行已终结",
		"execution_id", execution.ID,
		"rule_id", rule.ID,
		"status", status,
		"entities_checked", execution.EntitiesChecked,
		"violations_found", execution.ViolationsFound,
		"elapsed_ms", elapsed)
	return nil
}

// CancelExecution 取消执行
// pending 直接转为 cancelled；running 通知运行协程在批次间让出；终态返回错误
func (e *Executor) CancelExecution(id string) error {
	execution, err := e.GetExecutionByID(id)
	if err != nil {
		return err
	}
	if execution.IsTerminal() {
		return ErrExecutionNotCancellable
	}

	if execution.Status == models.ExecutionStatusPending {
		result := e.db.Model(&models.ValidationRuleExecution{}).
			Where("id = ? AND status = ?", id, models.ExecutionStatusPending).
			Updates(map[string]interface{}{
				"status":   models.ExecutionStatusCancelled,
				"end_time": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 认领和取消竞争，对运行中的执行走协作取消
			return e.cancelRunning(id)
		}
		return nil
	}

	return e.cancelRunning(id)
}

// cancelRunning 对运行中的执行触发协作取消
func (e *Executor) cancelRunning(id string) error {
	if e.cancels.cancel(id) {
		return nil
	}
	// 本进程没有对应的运行协程，直接条件更新兜底
	result := e.db.Model(&models.ValidationRuleExecution{}).
		Where("id = ? AND status = ?", id, models.ExecutionStatusRunning).
		Updates(map[string]interface{}{
			"status":   models.ExecutionStatusCancelled,
			"end_time": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrExecutionNotCancellable
	}
	return nil
}

// ExecuteBatch 批量执行规则，每条规则独立协程运行，互不影响
func (e *Executor) ExecuteBatch(rules []models.ValidationRule, req *ExecuteBatchRequest) (*BatchExecuteResponse, error) {
	executionIDs := make([]string, 0, len(rules))

	for i := range rules {
		rule := rules[i]
		execution, err := e.CreateExecution(&rule, &ExecuteRuleRequest{
			PipelineRunID:    req.PipelineRunID,
			TriggeredBy:      req.TriggeredBy,
			ExecutionContext: req.ExecutionContext,
		})
		if err != nil {
			slog.Error("创建批量执行记录失败", "rule_id", rule.ID, "error", err)
			continue
		}
		executionIDs = append(executionIDs, execution.ID)

		go func(execID, ruleID string) {
			if err := e.StartExecution(context.Background(), execID); err != nil {
				slog.Error("批量执行单条规则失败", "execution_id", execID, "rule_id", ruleID, "error", err)
			}
		}(execution.ID, rule.ID)
	}

	return &BatchExecuteResponse{
		Message:      fmt.Sprintf("已提交 %d 条规则执行", len(executionIDs)),
		ExecutionIDs: executionIDs,
	}, nil
}

// ValidateRecord 实时校验单条记录
// 只运行实时模式下的字段、格式与业务逻辑规则，唯一性等全量检查不参与
func (e *Executor) ValidateRecord(ctx context.Context, record *TargetRecord) ([]EvalResult, error) {
	var rules []models.ValidationRule
	if err := e.db.Where("is_active = ? AND execution_mode = ?", true, ModeRealTime).
		Find(&rules).Error; err != nil {
		return nil, err
	}

	failures := make([]EvalResult, 0)
	for i := range rules {
		rule := &rules[i]
		switch rule.RuleType {
		case RuleTypeFieldValidation, RuleTypeFormatValidation, RuleTypeBusinessLogic:
		default:
			continue
		}
		if !record.IsRelationship && !rule.MatchesEntityType(record.EntityType) {
			continue
		}

		cond, err := ParseCondition(rule.Conditions)
		if err != nil {
			slog.Warn("实时校验解析规则条件失败", "rule_id", rule.ID, "error", err)
			continue
		}
		result, err := e.evaluator.Evaluate(ctx, rule.RuleType, cond, record)
		if err != nil {
			slog.Warn("实时校验评估失败", "rule_id", rule.ID, "error", err)
			continue
		}
		if !result.Passed {
			r := *result
			if rule.ErrorMessage != "" {
				r.Message = rule.ErrorMessage
			}
			failures = append(failures, r)
		}
	}
	return failures, nil
}

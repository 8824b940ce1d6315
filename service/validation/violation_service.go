/*
 * @module service/validation/violation_service
 * @description 违规记录跟踪服务，提供违规的查询、单条处置与批量处置
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow open -> resolved/ignored/false_positive，处置人与处置时间随状态离开 open 时写入
 * @rules 批量处置返回真实改动行数；状态回到 open 时清空处置人与处置时间
 * @dependencies gorm.io/gorm
 * @refs service/models/validation_execution.go
 */

package validation

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"vbkg-validation-service/service/models"
)

// ViolationService 违规记录跟踪服务
type ViolationService struct {
	db *gorm.DB
}

// NewViolationService 创建违规跟踪服务实例
func NewViolationService(db *gorm.DB) *ViolationService {
	return &ViolationService{db: db}
}

// GetViolationByID 根据ID获取违规记录
func (s *ViolationService) GetViolationByID(id string) (*models.ValidationViolation, error) {
	var violation models.ValidationViolation
	if err := s.db.First(&violation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrViolationNotFound
		}
		return nil, err
	}
	return &violation, nil
}

// ListViolations 分页获取违规记录列表
func (s *ViolationService) ListViolations(filter *ViolationListFilter) ([]models.ValidationViolation, int64, error) {
	var violations []models.ValidationViolation
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

	query := s.db.Model(&models.ValidationViolation{})
	if filter.RuleID != "" {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&violations).Error; err != nil {
		return nil, 0, err
	}
	return violations, total, nil
}

// ListViolationsByExecution 获取某次执行产生的全部违规
func (s *ViolationService) ListViolationsByExecution(executionID string) ([]models.ValidationViolation, error) {
	var violations []models.ValidationViolation
	if err := s.db.Where("rule_execution_id = ?", executionID).
		Order("created_at").Find(&violations).Error; err != nil {
		return nil, err
	}
	return violations, nil
}

// UpdateViolation 处置单条违规
func (s *ViolationService) UpdateViolation(id string, req *UpdateViolationRequest) (*models.ValidationViolation, error) {
	if err := validateEnum(req.Status, validViolationStatuses(), "违规状态"); err != nil {
		return nil, err
	}
	if _, err := s.GetViolationByID(id); err != nil {
		return nil, err
	}

	updates := resolutionUpdates(req.Status, req.ResolutionAction, req.ResolutionNotes, req.ResolvedBy)
	if err := s.db.Model(&models.ValidationViolation{}).Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetViolationByID(id)
}

// BulkUpdateViolations 批量处置违规，返回真实改动的行数
func (s *ViolationService) BulkUpdateViolations(req *BulkUpdateViolationsRequest) (*BulkUpdateViolationsResponse, error) {
	if err := validateEnum(req.Status, validViolationStatuses(), "违规状态"); err != nil {
		return nil, err
	}
	if len(req.ViolationIDs) == 0 {
		return &BulkUpdateViolationsResponse{UpdatedCount: 0}, nil
	}

	updates := resolutionUpdates(req.Status, req.ResolutionAction, req.ResolutionNotes, req.ResolvedBy)
	result := s.db.Model(&models.ValidationViolation{}).
		Where("id IN ?", req.ViolationIDs).Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	return &BulkUpdateViolationsResponse{UpdatedCount: result.RowsAffected}, nil
}

// resolutionUpdates 构造处置更新集
// 状态离开 open 时写入处置人与处置时间，回到 open 时清空
func resolutionUpdates(status, action, notes, resolvedBy string) map[string]interface{} {
	updates := map[string]interface{}{
		"status":            status,
		"resolution_action": action,
		"resolution_notes":  notes,
	}
	if status == models.ViolationStatusOpen {
		updates["resolved_by"] = ""
		updates["resolved_at"] = nil
	} else {
		updates["resolved_by"] = resolvedBy
		updates["resolved_at"] = time.Now()
	}
	return updates
}

func validViolationStatuses() []string {
	return []string{
		models.ViolationStatusOpen,
		models.ViolationStatusResolved,
		models.ViolationStatusIgnored,
		models.ViolationStatusFalsePositive,
	}
}

/*
 * @module service/validation/violation_service_test
 * @description 违规跟踪服务测试，覆盖查询过滤、单条处置与批量处置语义
 * @architecture 测试层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 构造违规 -> 处置 -> 状态与处置信息验证
 * @rules 批量处置返回真实改动行数；状态回到 open 时清空处置信息
 * @dependencies testing, github.com/stretchr/testify
 * @refs violation_service.go
 */

package validation

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbkg-validation-service/service/models"
	"vbkg-validation-service/testutil"
)

func seedViolation(tdb *testutil.TestDB, ruleID, severity string) *models.ValidationViolation {
	violation := &models.ValidationViolation{
		RuleExecutionID: uuid.New().String(),
		RuleID:          ruleID,
		EntityID:        uuid.New().String(),
		ViolationType:   RuleTypeFieldValidation,
		Severity:        severity,
		Message:         "字段缺失",
		Status:          models.ViolationStatusOpen,
	}
	tdb.DB.Create(violation)
	return violation
}

// TestListViolationsFilters 测试违规列表过滤
func TestListViolationsFilters(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewViolationService(tdb.DB)
	rule := tdb.CreateTestRule("过滤规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	seedViolation(tdb, rule.ID, SeverityHigh)
	seedViolation(tdb, rule.ID, SeverityLow)
	other := seedViolation(tdb, uuid.New().String(), SeverityHigh)

	violations, total, err := svc.ListViolations(&ViolationListFilter{RuleID: rule.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, violations, 2)

	violations, total, err = svc.ListViolations(&ViolationListFilter{Severity: SeverityHigh})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	violations, total, err = svc.ListViolations(&ViolationListFilter{RuleID: other.RuleID, Severity: SeverityLow})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, violations)
}

// TestUpdateViolationResolution 处置信息随状态变化维护
func TestUpdateViolationResolution(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewViolationService(tdb.DB)
	rule := tdb.CreateTestRule("处置规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})
	violation := seedViolation(tdb, rule.ID, SeverityMedium)

	// 处置为 resolved，写入处置人与处置时间
	updated, err := svc.UpdateViolation(violation.ID, &UpdateViolationRequest{
		Status:           models.ViolationStatusResolved,
		ResolutionAction: "data_fix",
		ResolutionNotes:  "已补全字段",
		ResolvedBy:       "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ViolationStatusResolved, updated.Status)
	assert.Equal(t, "admin", updated.ResolvedBy)
	assert.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, "data_fix", updated.ResolutionAction)

	// 回到 open，处置人与处置时间清空
	updated, err = svc.UpdateViolation(violation.ID, &UpdateViolationRequest{
		Status: models.ViolationStatusOpen,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ViolationStatusOpen, updated.Status)
	assert.Empty(t, updated.ResolvedBy)
	assert.Nil(t, updated.ResolvedAt)
}

// TestUpdateViolationInvalidStatus 非法状态被拒绝
func TestUpdateViolationInvalidStatus(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewViolationService(tdb.DB)
	rule := tdb.CreateTestRule("状态规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})
	violation := seedViolation(tdb, rule.ID, SeverityMedium)

	_, err := svc.UpdateViolation(violation.ID, &UpdateViolationRequest{Status: "archived"})
	assert.Error(t, err)

	_, err = svc.UpdateViolation("no-such-id", &UpdateViolationRequest{
		Status: models.ViolationStatusIgnored,
	})
	assert.True(t, errors.Is(err, ErrViolationNotFound))
}

// TestBulkUpdateViolationsCount 批量处置返回真实改动行数
func TestBulkUpdateViolationsCount(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewViolationService(tdb.DB)
	rule := tdb.CreateTestRule("批量规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	v1 := seedViolation(tdb, rule.ID, SeverityMedium)
	v2 := seedViolation(tdb, rule.ID, SeverityMedium)

	// 三个ID中一个不存在，只改动两行
	resp, err := svc.BulkUpdateViolations(&BulkUpdateViolationsRequest{
		ViolationIDs: []string{v1.ID, v2.ID, "no-such-id"},
		Status:       models.ViolationStatusIgnored,
		ResolvedBy:   "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.UpdatedCount)

	var ignored int64
	tdb.DB.Model(&models.ValidationViolation{}).
		Where("status = ?", models.ViolationStatusIgnored).Count(&ignored)
	assert.Equal(t, int64(2), ignored)

	// 空ID列表直接返回零
	resp, err = svc.BulkUpdateViolations(&BulkUpdateViolationsRequest{
		ViolationIDs: []string{},
		Status:       models.ViolationStatusResolved,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.UpdatedCount)
}

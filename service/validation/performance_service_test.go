/*
 * @module service/validation/performance_service_test
 * @description 性能聚合服务测试，覆盖幂等聚合、成功率计算与仪表板汇总
 * @architecture 测试层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 构造终结执行 -> 聚合 -> 指标验证
 * @rules 同一执行重复聚合不改变累计指标
 * @dependencies testing, github.com/stretchr/testify
 * @refs performance_service.go
 */

package validation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbkg-validation-service/service/models"
	"vbkg-validation-service/testutil"
)

func finishedExecution(ruleID, status string, elapsed, violations int64) *models.ValidationRuleExecution {
	now := time.Now()
	return &models.ValidationRuleExecution{
		ID:              uuid.New().String(),
		RuleID:          ruleID,
		Status:          status,
		EndTime:         &now,
		ExecutionTime:   elapsed,
		ViolationsFound: violations,
	}
}

// TestRecordExecutionIdempotent 同一执行重复聚合只计一次
func TestRecordExecutionIdempotent(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewPerformanceService(tdb.DB)
	rule := tdb.CreateTestRule("聚合规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	execution := finishedExecution(rule.ID, models.ExecutionStatusCompleted, 100, 2)

	require.NoError(t, svc.RecordExecution(execution, rule))
	require.NoError(t, svc.RecordExecution(execution, rule))

	var perf models.RulePerformance
	require.NoError(t, tdb.DB.First(&perf, "rule_id = ?", rule.ID).Error)
	assert.Equal(t, int64(1), perf.TotalExecutions)
	assert.Equal(t, int64(2), perf.TotalViolations)
	assert.Equal(t, int64(100), perf.ExecutionTimeSum)
}

// TestRecordExecutionMetricsIdempotent 重放聚合不重复累加 Prometheus 指标
func TestRecordExecutionMetricsIdempotent(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewPerformanceService(tdb.DB)
	rule := tdb.CreateTestRule("指标去重", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	execution := finishedExecution(rule.ID, models.ExecutionStatusCompleted, 100, 3)

	// 指标是进程级的，按增量断言
	executionsBefore := promtestutil.ToFloat64(
		metricExecutionsTotal.WithLabelValues(models.ExecutionStatusCompleted))
	violationsBefore := promtestutil.ToFloat64(
		metricViolationsTotal.WithLabelValues(rule.Severity))

	require.NoError(t, svc.RecordExecution(execution, rule))
	require.NoError(t, svc.RecordExecution(execution, rule))

	assert.InDelta(t, executionsBefore+1, promtestutil.ToFloat64(
		metricExecutionsTotal.WithLabelValues(models.ExecutionStatusCompleted)), 1e-9)
	assert.InDelta(t, violationsBefore+3, promtestutil.ToFloat64(
		metricViolationsTotal.WithLabelValues(rule.Severity)), 1e-9)
}

// TestSuccessRateComputation 3次完成加1次失败，成功率0.75
func TestSuccessRateComputation(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewPerformanceService(tdb.DB)
	rule := tdb.CreateTestRule("成功率规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordExecution(
			finishedExecution(rule.ID, models.ExecutionStatusCompleted, 100, 0), rule))
	}
	require.NoError(t, svc.RecordExecution(
		finishedExecution(rule.ID, models.ExecutionStatusFailed, 50, 0), rule))

	var perf models.RulePerformance
	require.NoError(t, tdb.DB.First(&perf, "rule_id = ?", rule.ID).Error)
	assert.Equal(t, int64(4), perf.TotalExecutions)
	assert.Equal(t, int64(1), perf.FailedExecutions)
	assert.InDelta(t, 0.75, perf.SuccessRate, 1e-9)
	assert.InDelta(t, 87.5, perf.AvgExecutionTime(), 1e-9)

	// 规则行上的冗余统计同步刷新
	var after models.ValidationRule
	require.NoError(t, tdb.DB.First(&after, "id = ?", rule.ID).Error)
	assert.Equal(t, int64(4), after.ExecutionCount)
	assert.InDelta(t, 0.75, after.SuccessRate, 1e-9)
}

// TestRecordExecutionCancelledSkipped 取消的执行不参与累计指标
func TestRecordExecutionCancelledSkipped(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewPerformanceService(tdb.DB)
	rule := tdb.CreateTestRule("取消聚合", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	require.NoError(t, svc.RecordExecution(
		finishedExecution(rule.ID, models.ExecutionStatusCancelled, 100, 0), rule))

	var count int64
	tdb.DB.Model(&models.RulePerformance{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

// TestRecordExecutionRejectsNonTerminal 未终结的执行不能聚合
func TestRecordExecutionRejectsNonTerminal(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewPerformanceService(tdb.DB)
	rule := tdb.CreateTestRule("未终结", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	err := svc.RecordExecution(&models.ValidationRuleExecution{
		ID: uuid.New().String(), RuleID: rule.ID, Status: models.ExecutionStatusRunning,
	}, rule)
	assert.Error(t, err)
}

// TestDashboardSummary 测试仪表板汇总
func TestDashboardSummary(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewPerformanceService(tdb.DB)

	activeRule := tdb.CreateTestRule("激活", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})
	inactive := tdb.CreateTestRule("停用", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})
	tdb.DB.Model(inactive).Update("is_active", false)

	// 近24小时的违规与一条严重未处置违规
	tdb.DB.Create(&models.ValidationViolation{
		RuleID: activeRule.ID, RuleExecutionID: uuid.New().String(),
		Severity: SeverityCritical, Status: models.ViolationStatusOpen,
		Message: "严重违规",
	})
	tdb.DB.Create(&models.ValidationViolation{
		RuleID: activeRule.ID, RuleExecutionID: uuid.New().String(),
		Severity: SeverityLow, Status: models.ViolationStatusResolved,
		Message: "已处置违规",
	})

	require.NoError(t, svc.RecordExecution(
		finishedExecution(activeRule.ID, models.ExecutionStatusCompleted, 10, 0), activeRule))

	summary, err := svc.GetDashboardSummary()
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.TotalRules)
	assert.Equal(t, int64(1), summary.ActiveRules)
	assert.Equal(t, int64(2), summary.RecentViolations)
	assert.Equal(t, int64(1), summary.CriticalViolations)
	assert.Equal(t, int64(1), summary.OpenViolations)
	assert.InDelta(t, 1.0, summary.AvgSuccessRate, 1e-9)
}

// TestGetRulePerformanceView 测试单规则性能视图
func TestGetRulePerformanceView(t *testing.T) {
	tdb := testutil.NewTestDB()
	svc := NewPerformanceService(tdb.DB)
	rule := tdb.CreateTestRule("视图规则", RuleTypeFieldValidation,
		models.JSONB{"field": "name", "operator": "exists"})

	// 无聚合数据时返回零值视图
	view, err := svc.GetRulePerformance(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.ID, view.RuleID)
	assert.Equal(t, int64(0), view.TotalExecutions)

	require.NoError(t, svc.RecordExecution(
		finishedExecution(rule.ID, models.ExecutionStatusCompleted, 200, 5), rule))

	view, err = svc.GetRulePerformance(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.TotalExecutions)
	assert.Equal(t, int64(5), view.TotalViolations)
	assert.InDelta(t, 200, view.AvgExecutionTime, 1e-9)

	// 规则不存在
	_, err = svc.GetRulePerformance("no-such-rule")
	assert.Error(t, err)
}

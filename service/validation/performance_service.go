/*
 * @module service/validation/performance_service
 * @description 执行性能聚合服务，维护规则级累计指标、质量仪表板与 Prometheus 指标
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 执行终结 -> 幂等事件去重 -> 累计指标更新 -> 规则冗余统计回写
 * @rules 同一执行最多聚合一次，以 execution_id 为主键的事件表做去重
 * @dependencies gorm.io/gorm, github.com/prometheus/client_golang
 * @refs service/validation/executor.go, service/models/validation_execution.go
 */

package validation

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vbkg-validation-service/service/models"
)

var (
	metricExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_executions_total",
		Help: "校验执行终结总数，按状态分类",
	}, []string{"status"})

	metricViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_violations_total",
		Help: "校验违规产生总数，按严重级别分类",
	}, []string{"severity"})

	metricExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "validation_execution_duration_seconds",
		Help:    "校验执行耗时分布",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})
)

// PerformanceService 执行性能聚合服务
type PerformanceService struct {
	db *gorm.DB
}

// NewPerformanceService 创建性能聚合服务实例
func NewPerformanceService(db *gorm.DB) *PerformanceService {
	return &PerformanceService{db: db}
}

// RecordExecution 聚合一次已终结的执行
// 事件表以 execution_id 为主键，重复聚合请求写入冲突后直接跳过
func (s *PerformanceService) RecordExecution(execution *models.ValidationRuleExecution, rule *models.ValidationRule) error {
	if !execution.IsTerminal() {
		return errors.New("执行尚未终结，不能聚合")
	}

	recorded := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		event := models.PerformanceEvent{ExecutionID: execution.ID, RuleID: rule.ID}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&event)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			// 该执行已聚合过
			return nil
		}
		recorded = true

		// 取消的执行只进事件表，不参与成功率聚合
		if execution.Status == models.ExecutionStatusCancelled {
			return nil
		}

		var perf models.RulePerformance
		err := tx.First(&perf, "rule_id = ?", rule.ID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			perf = models.RulePerformance{RuleID: rule.ID}
		} else if err != nil {
			return err
		}

		perf.TotalExecutions++
		if execution.Status == models.ExecutionStatusFailed {
			perf.FailedExecutions++
		}
		perf.ExecutionTimeSum += execution.ExecutionTime
		perf.TotalViolations += execution.ViolationsFound
		perf.SuccessRate = float64(perf.TotalExecutions-perf.FailedExecutions) / float64(perf.TotalExecutions)
		now := time.Now()
		perf.LastExecutedAt = &now

		if err := tx.Save(&perf).Error; err != nil {
			return err
		}

		// 规则行上的冗余统计随聚合同步刷新
		return tx.Model(&models.ValidationRule{}).Where("id = ?", rule.ID).
			Updates(map[string]interface{}{
				"execution_count":        perf.TotalExecutions,
				"violation_count":        perf.TotalViolations,
				"success_rate":           perf.SuccessRate,
				"average_execution_time": perf.AvgExecutionTime(),
				"last_executed_at":       now,
			}).Error
	})
	if err != nil || !recorded {
		return err
	}

	// 指标与事件表同一去重口径，重放聚合不会重复计数
	metricExecutionsTotal.WithLabelValues(execution.Status).Inc()
	if execution.Status != models.ExecutionStatusCancelled {
		metricExecutionDuration.Observe(float64(execution.ExecutionTime) / 1000)
		if execution.ViolationsFound > 0 {
			metricViolationsTotal.WithLabelValues(rule.Severity).Add(float64(execution.ViolationsFound))
		}
	}
	return nil
}

// GetRulePerformance 获取单条规则的性能视图
func (s *PerformanceService) GetRulePerformance(ruleID string) (*RulePerformanceView, error) {
	var rule models.ValidationRule
	if err := s.db.First(&rule, "id = ?", ruleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	var perf models.RulePerformance
	err := s.db.First(&perf, "rule_id = ?", ruleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &RulePerformanceView{RuleID: rule.ID, RuleName: rule.Name}, nil
	} else if err != nil {
		return nil, err
	}

	return &RulePerformanceView{
		RuleID:           rule.ID,
		RuleName:         rule.Name,
		TotalExecutions:  perf.TotalExecutions,
		AvgExecutionTime: perf.AvgExecutionTime(),
		TotalViolations:  perf.TotalViolations,
		SuccessRate:      perf.SuccessRate,
		LastExecutedAt:   perf.LastExecutedAt,
	}, nil
}

// ListRulePerformance 获取全部规则的性能视图
func (s *PerformanceService) ListRulePerformance() ([]RulePerformanceView, error) {
	var perfs []models.RulePerformance
	if err := s.db.Order("total_violations DESC").Find(&perfs).Error; err != nil {
		return nil, err
	}

	views := make([]RulePerformanceView, 0, len(perfs))
	for _, perf := range perfs {
		var rule models.ValidationRule
		name := ""
		if err := s.db.Select("name").First(&rule, "id = ?", perf.RuleID).Error; err == nil {
			name = rule.Name
		}
		views = append(views, RulePerformanceView{
			RuleID:           perf.RuleID,
			RuleName:         name,
			TotalExecutions:  perf.TotalExecutions,
			AvgExecutionTime: perf.AvgExecutionTime(),
			TotalViolations:  perf.TotalViolations,
			SuccessRate:      perf.SuccessRate,
			LastExecutedAt:   perf.LastExecutedAt,
		})
	}
	return views, nil
}

// GetDashboardSummary 获取质量仪表板汇总
func (s *PerformanceService) GetDashboardSummary() (*DashboardSummary, error) {
	summary := &DashboardSummary{}

	if err := s.db.Model(&models.ValidationRule{}).Count(&summary.TotalRules).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.ValidationRule{}).Where("is_active = ?", true).
		Count(&summary.ActiveRules).Error; err != nil {
		return nil, err
	}

	since := time.Now().Add(-24 * time.Hour)
	if err := s.db.Model(&models.ValidationViolation{}).Where("created_at >= ?", since).
		Count(&summary.RecentViolations).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.ValidationViolation{}).
		Where("severity = ? AND status = ?", SeverityCritical, models.ViolationStatusOpen).
		Count(&summary.CriticalViolations).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.ValidationViolation{}).
		Where("status = ?", models.ViolationStatusOpen).
		Count(&summary.OpenViolations).Error; err != nil {
		return nil, err
	}

	var perfs []models.RulePerformance
	if err := s.db.Find(&perfs).Error; err != nil {
		return nil, err
	}
	if len(perfs) > 0 {
		var sum float64
		for _, perf := range perfs {
			sum += perf.SuccessRate
		}
		summary.AvgSuccessRate = sum / float64(len(perfs))
	}

	return summary, nil
}

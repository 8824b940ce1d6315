/*
 * @module service/validation/scheduler
 * @description 定时校验调度器，按规则的 cron 表达式触发执行，多实例下用分布式锁防重
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 启动加载 scheduled 规则 -> 注册 cron 条目 -> 触发时抢锁执行 -> 规则变更后重载
 * @rules 未配置 Redis 时退化为单实例直接执行；锁被占用时本实例跳过该次触发
 * @dependencies github.com/robfig/cron/v3
 * @refs service/validation/executor.go, service/distributed_lock/redis_lock.go
 */

package validation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"vbkg-validation-service/service/models"
)

// SchedulerLock 调度防重锁接口，多实例部署时由 Redis 锁实现
type SchedulerLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// Scheduler 定时校验调度器
type Scheduler struct {
	db       *gorm.DB
	executor *Executor
	lock     SchedulerLock // 可为 nil

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID // rule_id -> entry
}

// NewScheduler 创建定时校验调度器
func NewScheduler(db *gorm.DB, executor *Executor, lock SchedulerLock) *Scheduler {
	return &Scheduler{
		db:       db,
		executor: executor,
		lock:     lock,
		cron:     cron.New(cron.WithSeconds()),
		entries:  make(map[string]cron.EntryID),
	}
}

// Start 启动调度器并加载全部定时规则
func (s *Scheduler) Start() error {
	if err := s.Reload(); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("定时校验调度器已启动")
	return nil
}

// Stop 停止调度器，等待进行中的触发结束
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Info("定时校验调度器已停止")
}

// Reload 重新加载 scheduled 模式的激活规则，规则增删改后调用
func (s *Scheduler) Reload() error {
	var rules []models.ValidationRule
	if err := s.db.Where("is_active = ? AND execution_mode = ? AND schedule_cron <> ''",
		true, ModeScheduled).Find(&rules).Error; err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for ruleID, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, ruleID)
	}

	for i := range rules {
		rule := rules[i]
		entryID, err := s.cron.AddFunc(rule.ScheduleCron, func() {
			s.trigger(rule.ID)
		})
		if err != nil {
			slog.Warn("规则 cron 表达式无效，跳过调度", "rule_id", rule.ID, "cron", rule.ScheduleCron, "error", err)
			continue
		}
		s.entries[rule.ID] = entryID
	}

	slog.Info("定时校验规则已加载", "count", len(s.entries))
	return nil
}

// trigger 单次定时触发，多实例下先抢锁
func (s *Scheduler) trigger(ruleID string) {
	ctx := context.Background()

	if s.lock != nil {
		locked, err := s.lock.TryLock(ctx, "rule:"+ruleID, 10*time.Minute)
		if err != nil {
			slog.Error("定时调度抢锁失败", "rule_id", ruleID, "error", err)
			return
		}
		if !locked {
			slog.Debug("定时调度锁被其他实例持有，跳过", "rule_id", ruleID)
			return
		}
		defer func() {
			if err := s.lock.Unlock(ctx, "rule:"+ruleID); err != nil {
				slog.Warn("定时调度释放锁失败", "rule_id", ruleID, "error", err)
			}
		}()
	}

	var rule models.ValidationRule
	if err := s.db.First(&rule, "id = ? AND is_active = ?", ruleID, true).Error; err != nil {
		slog.Warn("定时调度规则不可用", "rule_id", ruleID, "error", err)
		return
	}

	execution, err := s.executor.CreateExecution(&rule, &ExecuteRuleRequest{TriggeredBy: "scheduler"})
	if err != nil {
		slog.Error("定时调度创建执行失败", "rule_id", ruleID, "error", err)
		return
	}
	if err := s.executor.StartExecution(ctx, execution.ID); err != nil {
		slog.Error("定时调度执行失败", "rule_id", ruleID, "execution_id", execution.ID, "error", err)
	}
}

/*
 * @module service/notifier/kafka_notifier
 * @description Kafka事件通知器，执行终结与违规产生时向消息总线投递事件
 * @architecture 分层架构 - 外部集成层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 执行终结 -> 构造事件 -> 异步尽力投递，失败仅记录日志
 * @rules 未配置 KAFKA_BROKERS 时通知器禁用；投递失败不影响校验主流程
 * @dependencies github.com/segmentio/kafka-go
 * @refs service/validation/executor.go
 */

package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"vbkg-validation-service/service/models"
)

const (
	topicExecutions = "validation.executions"
	topicViolations = "validation.violations"
)

// KafkaNotifier Kafka事件通知器
type KafkaNotifier struct {
	executionWriter *kafka.Writer
	violationWriter *kafka.Writer
	enabled         bool
}

// NewKafkaNotifier 创建Kafka事件通知器
// 环境变量 KAFKA_BROKERS 为空时返回禁用的通知器
func NewKafkaNotifier() *KafkaNotifier {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		slog.Info("未配置 KAFKA_BROKERS，事件通知器已禁用")
		return &KafkaNotifier{enabled: false}
	}

	addrs := strings.Split(brokers, ",")
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(addrs...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 100 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		}
	}

	slog.Info("Kafka事件通知器已启用", "brokers", brokers)
	return &KafkaNotifier{
		executionWriter: newWriter(topicExecutions),
		violationWriter: newWriter(topicViolations),
		enabled:         true,
	}
}

// NotifyExecutionFinished 投递执行终结事件
func (n *KafkaNotifier) NotifyExecutionFinished(execution *models.ValidationRuleExecution) {
	if !n.enabled {
		return
	}
	event := map[string]interface{}{
		"event_type":       "execution_finished",
		"execution_id":     execution.ID,
		"rule_id":          execution.RuleID,
		"status":           execution.Status,
		"entities_checked": execution.EntitiesChecked,
		"violations_found": execution.ViolationsFound,
		"execution_time":   execution.ExecutionTime,
		"pipeline_run_id":  execution.PipelineRunID,
		"timestamp":        time.Now().Format(time.RFC3339),
	}
	n.publish(n.executionWriter, execution.RuleID, event)
}

// NotifyViolations 投递违规产生事件
func (n *KafkaNotifier) NotifyViolations(ruleID, ruleName, severity string, count int64) {
	if !n.enabled {
		return
	}
	event := map[string]interface{}{
		"event_type": "violations_detected",
		"rule_id":    ruleID,
		"rule_name":  ruleName,
		"severity":   severity,
		"count":      count,
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	n.publish(n.violationWriter, ruleID, event)
}

// publish 尽力投递，失败仅记录日志
func (n *KafkaNotifier) publish(writer *kafka.Writer, key string, event map[string]interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("事件序列化失败", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: payload,
	}); err != nil {
		slog.Warn("事件投递失败", "topic", writer.Topic, "error", err)
	}
}

// Close 关闭底层写入器
func (n *KafkaNotifier) Close() error {
	if !n.enabled {
		return nil
	}
	if err := n.executionWriter.Close(); err != nil {
		return err
	}
	return n.violationWriter.Close()
}

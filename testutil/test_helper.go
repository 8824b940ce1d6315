/*
 * @module testutil/test_helper
 * @description 测试工具和辅助函数
 * @architecture 测试基础设施 - 提供测试通用工具和数据工厂
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 测试环境初始化 -> 测试数据创建 -> 测试执行 -> 清理资源
 * @rules 提供可重用的测试工具，确保测试环境的一致性
 * @dependencies gorm, sqlite, testify
 * @refs service/models
 */

package testutil

import (
	"fmt"

	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vbkg-validation-service/service/models"
)

// TestDB 测试数据库配置
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB 创建测试数据库
func NewTestDB() *TestDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(fmt.Sprintf("failed to connect test database: %v", err))
	}

	// 内存库在连接池下会各自为政，收敛到单连接
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.ValidationRule{},
		&models.ValidationRuleTemplate{},
		&models.ValidationRuleExecution{},
		&models.ValidationViolation{},
		&models.RulePerformance{},
		&models.PerformanceEvent{},
		&models.KGEntity{},
		&models.KGRelationship{},
		&models.PipelineRun{},
		&models.PipelineStep{},
	)
	if err != nil {
		panic(fmt.Sprintf("failed to migrate test database: %v", err))
	}

	return &TestDB{DB: db}
}

// CleanDB 清理数据库
func (tdb *TestDB) CleanDB() {
	tables := []string{
		"validation_rules",
		"validation_rule_templates",
		"validation_rule_executions",
		"validation_violations",
		"rule_performances",
		"performance_events",
		"kg_entities",
		"kg_relationships",
		"pipeline_runs",
		"pipeline_steps",
	}

	for _, table := range tables {
		tdb.DB.Exec(fmt.Sprintf("DELETE FROM %s", table))
	}
}

// CreateTestRule 创建测试用校验规则
func (tdb *TestDB) CreateTestRule(name, ruleType string, conditions models.JSONB) *models.ValidationRule {
	rule := &models.ValidationRule{
		Name:              name,
		Category:          "completeness",
		RuleType:          ruleType,
		IsActive:          true,
		Severity:          "medium",
		TargetEntityTypes: pq.StringArray{"person"},
		Conditions:        conditions,
		ExecutionMode:     "on_demand",
		BatchSize:         models.DefaultBatchSize,
		TimeoutSeconds:    models.DefaultTimeout,
	}
	if err := tdb.DB.Create(rule).Error; err != nil {
		panic(fmt.Sprintf("failed to create test rule: %v", err))
	}
	return rule
}

// CreateTestEntity 创建测试用图谱实体
func (tdb *TestDB) CreateTestEntity(entityType, name string, properties models.JSONB) *models.KGEntity {
	entity := &models.KGEntity{
		EntityType: entityType,
		Name:       name,
		Properties: properties,
	}
	if err := tdb.DB.Create(entity).Error; err != nil {
		panic(fmt.Sprintf("failed to create test entity: %v", err))
	}
	return entity
}

// CreateTestRelationship 创建测试用图谱关系
func (tdb *TestDB) CreateTestRelationship(relType, sourceID, targetID string) *models.KGRelationship {
	rel := &models.KGRelationship{
		RelationshipType: relType,
		SourceEntityID:   sourceID,
		TargetEntityID:   targetID,
		Properties:       models.JSONB{},
	}
	if err := tdb.DB.Create(rel).Error; err != nil {
		panic(fmt.Sprintf("failed to create test relationship: %v", err))
	}
	return rel
}

/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、表结构迁移与各业务服务装配
 * @architecture 分层架构 - 服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 应用启动时执行：连接数据库 -> 迁移 -> 内置模板初始化 -> 服务装配 -> 调度器启动
 * @rules 确保所有依赖服务正常启动后才提供API服务；Redis/Kafka 缺省时降级为单实例能力
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres
 * @refs service/validation, service/pipeline, service/kgraph
 */

package service

import (
	"fmt"
	"log"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vbkg-validation-service/service/distributed_lock"
	"vbkg-validation-service/service/kgraph"
	"vbkg-validation-service/service/models"
	"vbkg-validation-service/service/notifier"
	"vbkg-validation-service/service/pipeline"
	"vbkg-validation-service/service/validation"
)

var (
	DB                       *gorm.DB
	GlobalEvaluator          *validation.ConditionEvaluator
	GlobalRuleService        *validation.RuleService
	GlobalTemplateService    *validation.TemplateService
	GlobalExecutor           *validation.Executor
	GlobalViolationService   *validation.ViolationService
	GlobalPerformanceService *validation.PerformanceService
	GlobalScheduler          *validation.Scheduler
	GlobalKGraphProvider     *kgraph.Provider
	GlobalPipelineService    *pipeline.IntegrationService
	GlobalNotifier           *notifier.KafkaNotifier
	GlobalRedisLock          *distributed_lock.RedisLock
)

func init() {
	initDatabase()
	runMigrations()
	initServices()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=Asia/Shanghai",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// runMigrations 运行数据库迁移
func runMigrations() {
	log.Println("开始运行数据库迁移...")

	if err := DB.AutoMigrate(
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
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	log.Println("数据库表结构迁移完成")
}

// initServices 初始化服务
func initServices() {
	GlobalEvaluator = validation.NewConditionEvaluator(validation.NewYaegiHook())
	GlobalRuleService = validation.NewRuleService(DB, GlobalEvaluator)
	GlobalTemplateService = validation.NewTemplateService(DB)
	GlobalViolationService = validation.NewViolationService(DB)
	GlobalPerformanceService = validation.NewPerformanceService(DB)
	GlobalKGraphProvider = kgraph.NewProvider(DB)
	GlobalNotifier = notifier.NewKafkaNotifier()
	GlobalExecutor = validation.NewExecutor(DB, GlobalEvaluator, GlobalKGraphProvider,
		GlobalPerformanceService, GlobalNotifier)
	GlobalPipelineService = pipeline.NewIntegrationService(DB, GlobalRuleService, GlobalExecutor)

	// 初始化内置规则模板
	if err := GlobalTemplateService.SeedBuiltinTemplates(); err != nil {
		log.Fatalf("内置规则模板初始化失败: %v", err)
	}

	// Redis 可选，多实例部署时用于定时调度防重
	var lock validation.SchedulerLock
	if os.Getenv("REDIS_HOST") != "" {
		redisLock, err := distributed_lock.NewRedisLock()
		if err != nil {
			log.Printf("Redis分布式锁初始化失败，定时调度降级为单实例模式: %v", err)
		} else {
			GlobalRedisLock = redisLock
			lock = redisLock
		}
	}

	GlobalScheduler = validation.NewScheduler(DB, GlobalExecutor, lock)
	if err := GlobalScheduler.Start(); err != nil {
		log.Printf("启动定时校验调度器失败: %v", err)
	}

	log.Println("服务初始化完成")
}

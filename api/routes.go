/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs api/controllers
 */

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"vbkg-validation-service/api/controllers"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 校验规则引擎
	r.Route("/validation", func(r chi.Router) {
		ruleController := controllers.NewValidationRuleController()
		executionController := controllers.NewExecutionController()
		violationController := controllers.NewViolationController()
		templateController := controllers.NewTemplateController()
		dashboardController := controllers.NewDashboardController()

		// 规则管理
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", ruleController.CreateRule)
			r.Get("/", ruleController.GetRules)
			r.Post("/execute-batch", ruleController.ExecuteBatch)
			r.Get("/{id}", ruleController.GetRuleByID)
			r.Put("/{id}", ruleController.UpdateRule)
			r.Delete("/{id}", ruleController.DeleteRule)
			r.Post("/{id}/toggle", ruleController.ToggleRule)
			r.Post("/{id}/execute", ruleController.ExecuteRule)
		})

		// 实时校验
		r.Post("/validate-record", ruleController.ValidateRecord)

		// 执行记录
		r.Route("/executions", func(r chi.Router) {
			r.Get("/", executionController.GetExecutions)
			r.Get("/{id}", executionController.GetExecutionByID)
			r.Get("/{id}/violations", executionController.GetExecutionViolations)
			r.Post("/{id}/cancel", executionController.CancelExecution)
		})

		// 违规管理
		r.Route("/violations", func(r chi.Router) {
			r.Get("/", violationController.GetViolations)
			r.Post("/bulk-update", violationController.BulkUpdateViolations)
			r.Get("/{id}", violationController.GetViolationByID)
			r.Put("/{id}", violationController.UpdateViolation)
		})

		// 规则模板
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateController.GetTemplates)
			r.Post("/", templateController.CreateTemplate)
			r.Get("/{id}", templateController.GetTemplateByID)
			r.Put("/{id}", templateController.UpdateTemplate)
			r.Delete("/{id}", templateController.DeleteTemplate)
			r.Post("/{id}/instantiate", templateController.InstantiateTemplate)
		})

		// 质量仪表板
		r.Get("/dashboard", dashboardController.GetDashboard)
		r.Get("/performance", dashboardController.GetPerformance)
		r.Get("/performance/{id}", dashboardController.GetRulePerformance)
	})

	// 管道集成
	r.Route("/pipeline", func(r chi.Router) {
		pipelineController := controllers.NewPipelineController()
		r.Route("/validation-gates", func(r chi.Router) {
			r.Post("/", pipelineController.CreateGate)
			r.Get("/", pipelineController.GetGates)
			r.Delete("/{id}", pipelineController.DeleteGate)
			r.Post("/{id}/run", pipelineController.RunGate)
		})
	})
}

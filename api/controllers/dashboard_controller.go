/*
 * @module api/controllers/dashboard_controller
 * @description 质量仪表板控制器，提供质量汇总与规则性能查询接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 仪表板数据来自性能聚合服务维护的累计指标
 * @dependencies vbkg-validation-service/service, github.com/go-chi/chi/v5
 * @refs service/validation/performance_service.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"vbkg-validation-service/service"
	"vbkg-validation-service/service/validation"
)

// DashboardController 质量仪表板控制器
type DashboardController struct {
	performanceService *validation.PerformanceService
}

// NewDashboardController 创建质量仪表板控制器实例
func NewDashboardController() *DashboardController {
	return &DashboardController{
		performanceService: service.GlobalPerformanceService,
	}
}

// GetDashboard 获取质量仪表板汇总
// @Summary 获取质量仪表板汇总
// @Description 获取规则总量、激活规则数、近24小时违规数、平均成功率等汇总信息
// @Tags 质量仪表板
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=validation.DashboardSummary} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /validation/dashboard [get]
func (c *DashboardController) GetDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := c.performanceService.GetDashboardSummary()
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取质量仪表板失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取质量仪表板成功",
		Data:   summary,
	})
}

// GetPerformance 获取全部规则性能
// @Summary 获取全部规则性能
// @Description 获取各规则的累计执行次数、平均耗时、违规总数与成功率
// @Tags 质量仪表板
// @Accept json
// @Produce json
// @Success 200 {object} APIResponse{data=[]validation.RulePerformanceView} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /validation/performance [get]
func (c *DashboardController) GetPerformance(w http.ResponseWriter, r *http.Request) {
	views, err := c.performanceService.ListRulePerformance()
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取规则性能失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取规则性能成功",
		Data:   views,
	})
}

// GetRulePerformance 获取单条规则性能
// @Summary 获取单条规则性能
// @Description 根据规则ID获取该规则的性能指标
// @Tags 质量仪表板
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse{data=validation.RulePerformanceView} "获取成功"
// @Failure 404 {object} APIResponse "规则不存在"
// @Router /validation/performance/{id} [get]
func (c *DashboardController) GetRulePerformance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := c.performanceService.GetRulePerformance(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取规则性能成功",
		Data:   view,
	})
}

/*
 * @module api/controllers/execution_controller
 * @description 校验执行控制器，提供执行记录查询、执行产生的违规查询与取消接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 终态执行不可取消；取消为协作式，运行中的执行在批次间让出
 * @dependencies vbkg-validation-service/service, github.com/go-chi/chi/v5
 * @refs service/validation/executor.go
 */

package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"vbkg-validation-service/service"
	"vbkg-validation-service/service/validation"
)

// ExecutionController 校验执行控制器
type ExecutionController struct {
	executor         *validation.Executor
	violationService *validation.ViolationService
}

// NewExecutionController 创建校验执行控制器实例
func NewExecutionController() *ExecutionController {
	return &ExecutionController{
		executor:         service.GlobalExecutor,
		violationService: service.GlobalViolationService,
	}
}

// GetExecutions 获取执行记录列表
// @Summary 获取执行记录列表
// @Description 分页获取校验执行记录，支持按规则和状态筛选
// @Tags 校验执行
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(20)
// @Param rule_id query string false "规则ID"
// @Param status query string false "执行状态" Enums(pending,running,completed,failed,cancelled)
// @Success 200 {object} PaginatedResponse{data=[]models.ValidationRuleExecution} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /validation/executions [get]
func (c *ExecutionController) GetExecutions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = validation.DefaultListLimit
	}

	executions, total, err := c.executor.ListExecutions(
		r.URL.Query().Get("rule_id"),
		r.URL.Query().Get("status"),
		size, (page-1)*size)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取执行记录列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取执行记录列表成功",
		Data:   executions,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetExecutionByID 获取执行记录详情
// @Summary 获取执行记录详情
// @Description 根据ID获取校验执行记录详情，包含进度与批次摘要
// @Tags 校验执行
// @Accept json
// @Produce json
// @Param id path string true "执行ID"
// @Success 200 {object} APIResponse{data=models.ValidationRuleExecution} "获取成功"
// @Failure 404 {object} APIResponse "执行记录不存在"
// @Router /validation/executions/{id} [get]
func (c *ExecutionController) GetExecutionByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	execution, err := c.executor.GetExecutionByID(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取执行记录详情成功",
		Data:   execution,
	})
}

// GetExecutionViolations 获取执行产生的违规列表
// @Summary 获取执行产生的违规列表
// @Description 获取某次执行产生的全部违规记录
// @Tags 校验执行
// @Accept json
// @Produce json
// @Param id path string true "执行ID"
// @Success 200 {object} APIResponse{data=[]models.ValidationViolation} "获取成功"
// @Failure 404 {object} APIResponse "执行记录不存在"
// @Router /validation/executions/{id}/violations [get]
func (c *ExecutionController) GetExecutionViolations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := c.executor.GetExecutionByID(id); err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	violations, err := c.violationService.ListViolationsByExecution(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取执行违规列表失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取执行违规列表成功",
		Data:   violations,
	})
}

// CancelExecution 取消执行
// @Summary 取消执行
// @Description 取消等待中或运行中的执行，已终结的执行返回错误
// @Tags 校验执行
// @Accept json
// @Produce json
// @Param id path string true "执行ID"
// @Success 200 {object} APIResponse "取消请求已受理"
// @Failure 400 {object} APIResponse "执行已终结"
// @Failure 404 {object} APIResponse "执行记录不存在"
// @Router /validation/executions/{id}/cancel [post]
func (c *ExecutionController) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.executor.CancelExecution(id); err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "取消请求已受理",
	})
}

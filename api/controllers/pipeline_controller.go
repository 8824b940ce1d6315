/*
 * @module api/controllers/pipeline_controller
 * @description 管道集成控制器，提供校验门禁的管理与触发接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 门禁触发为异步批量执行，返回执行ID列表供追溯
 * @dependencies vbkg-validation-service/service, github.com/go-chi/chi/v5
 * @refs service/pipeline/integration_service.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"vbkg-validation-service/service"
	"vbkg-validation-service/service/pipeline"
)

// PipelineController 管道集成控制器
type PipelineController struct {
	pipelineService *pipeline.IntegrationService
}

// NewPipelineController 创建管道集成控制器实例
func NewPipelineController() *PipelineController {
	return &PipelineController{
		pipelineService: service.GlobalPipelineService,
	}
}

// CreateGate 创建校验门禁
// @Summary 创建校验门禁
// @Description 在摄取管道上挂载校验门禁步骤，规则集合支持显式ID列表或质量维度+实体类型
// @Tags 管道集成
// @Accept json
// @Produce json
// @Param gate body pipeline.CreateGateRequest true "门禁信息"
// @Success 201 {object} APIResponse{data=models.PipelineStep} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /pipeline/validation-gates [post]
func (c *PipelineController) CreateGate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.CreateGateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	gate, err := c.pipelineService.CreateGate(&req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "创建校验门禁成功",
		Data:   gate,
	})
}

// GetGates 获取校验门禁列表
// @Summary 获取校验门禁列表
// @Description 获取校验门禁步骤列表，可按管道筛选
// @Tags 管道集成
// @Accept json
// @Produce json
// @Param pipeline_id query string false "管道ID"
// @Success 200 {object} APIResponse{data=[]models.PipelineStep} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /pipeline/validation-gates [get]
func (c *PipelineController) GetGates(w http.ResponseWriter, r *http.Request) {
	gates, err := c.pipelineService.ListGates(r.URL.Query().Get("pipeline_id"))
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取校验门禁列表失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取校验门禁列表成功",
		Data:   gates,
	})
}

// DeleteGate 删除校验门禁
// @Summary 删除校验门禁
// @Description 删除指定校验门禁步骤
// @Tags 管道集成
// @Accept json
// @Produce json
// @Param id path string true "门禁ID"
// @Success 200 {object} APIResponse "删除成功"
// @Failure 404 {object} APIResponse "门禁不存在"
// @Router /pipeline/validation-gates/{id} [delete]
func (c *PipelineController) DeleteGate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.pipelineService.DeleteGate(id); err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "删除校验门禁成功",
	})
}

// RunGate 触发校验门禁
// @Summary 触发校验门禁
// @Description 管道运行到达门禁时调用，解析绑定规则并批量执行，执行记录携带管道运行ID
// @Tags 管道集成
// @Accept json
// @Produce json
// @Param id path string true "门禁ID"
// @Param request body pipeline.RunGateRequest true "触发请求"
// @Success 202 {object} APIResponse{data=validation.BatchExecuteResponse} "已提交执行"
// @Failure 404 {object} APIResponse "门禁不存在"
// @Router /pipeline/validation-gates/{id}/run [post]
func (c *PipelineController) RunGate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req pipeline.RunGateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	if req.PipelineRunID == "" {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "pipeline_run_id 不能为空",
		})
		return
	}

	result, err := c.pipelineService.RunGate(id, &req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusAccepted,
		Msg:    result.Message,
		Data:   result,
	})
}

/*
 * @module api/controllers/violation_controller
 * @description 违规记录控制器，提供违规的查询、单条处置与批量处置接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 批量处置返回真实改动行数；处置人与处置时间随状态变化维护
 * @dependencies vbkg-validation-service/service, github.com/go-chi/chi/v5
 * @refs service/validation/violation_service.go
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

// ViolationController 违规记录控制器
type ViolationController struct {
	violationService *validation.ViolationService
}

// NewViolationController 创建违规记录控制器实例
func NewViolationController() *ViolationController {
	return &ViolationController{
		violationService: service.GlobalViolationService,
	}
}

// GetViolations 获取违规记录列表
// @Summary 获取违规记录列表
// @Description 分页获取违规记录，支持按规则、状态和严重级别筛选
// @Tags 违规管理
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(20)
// @Param rule_id query string false "规则ID"
// @Param status query string false "违规状态" Enums(open,resolved,ignored,false_positive)
// @Param severity query string false "严重级别" Enums(low,medium,high,critical)
// @Success 200 {object} PaginatedResponse{data=[]models.ValidationViolation} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /validation/violations [get]
func (c *ViolationController) GetViolations(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = validation.DefaultListLimit
	}

	filter := &validation.ViolationListFilter{
		RuleID:   r.URL.Query().Get("rule_id"),
		Status:   r.URL.Query().Get("status"),
		Severity: r.URL.Query().Get("severity"),
		Limit:    size,
		Offset:   (page - 1) * size,
	}

	violations, total, err := c.violationService.ListViolations(filter)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取违规记录列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取违规记录列表成功",
		Data:   violations,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetViolationByID 获取违规记录详情
// @Summary 获取违规记录详情
// @Description 根据ID获取违规记录详情
// @Tags 违规管理
// @Accept json
// @Produce json
// @Param id path string true "违规ID"
// @Success 200 {object} APIResponse{data=models.ValidationViolation} "获取成功"
// @Failure 404 {object} APIResponse "违规记录不存在"
// @Router /validation/violations/{id} [get]
func (c *ViolationController) GetViolationByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	violation, err := c.violationService.GetViolationByID(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取违规记录详情成功",
		Data:   violation,
	})
}

// UpdateViolation 处置单条违规
// @Summary 处置单条违规
// @Description 更新违规状态与处置信息
// @Tags 违规管理
// @Accept json
// @Produce json
// @Param id path string true "违规ID"
// @Param request body validation.UpdateViolationRequest true "处置内容"
// @Success 200 {object} APIResponse{data=models.ValidationViolation} "处置成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "违规记录不存在"
// @Router /validation/violations/{id} [put]
func (c *ViolationController) UpdateViolation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req validation.UpdateViolationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	violation, err := c.violationService.UpdateViolation(id, &req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "处置违规成功",
		Data:   violation,
	})
}

// BulkUpdateViolations 批量处置违规
// @Summary 批量处置违规
// @Description 按ID列表批量更新违规状态，返回真实改动行数
// @Tags 违规管理
// @Accept json
// @Produce json
// @Param request body validation.BulkUpdateViolationsRequest true "批量处置内容"
// @Success 200 {object} APIResponse{data=validation.BulkUpdateViolationsResponse} "处置成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /validation/violations/bulk-update [post]
func (c *ViolationController) BulkUpdateViolations(w http.ResponseWriter, r *http.Request) {
	var req validation.BulkUpdateViolationsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	result, err := c.violationService.BulkUpdateViolations(&req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "批量处置违规成功",
		Data:   result,
	})
}

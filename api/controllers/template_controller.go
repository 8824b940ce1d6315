/*
 * @module api/controllers/template_controller
 * @description 规则模板控制器，提供模板查询、自定义模板管理与模板实例化接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 内置模板不可修改或删除；模板实例化产生新规则并递增使用计数
 * @dependencies vbkg-validation-service/service, github.com/go-chi/chi/v5
 * @refs service/validation/template_service.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"vbkg-validation-service/service"
	"vbkg-validation-service/service/models"
	"vbkg-validation-service/service/validation"
)

// TemplateController 规则模板控制器
type TemplateController struct {
	templateService *validation.TemplateService
	ruleService     *validation.RuleService
}

// NewTemplateController 创建规则模板控制器实例
func NewTemplateController() *TemplateController {
	return &TemplateController{
		templateService: service.GlobalTemplateService,
		ruleService:     service.GlobalRuleService,
	}
}

// GetTemplates 获取规则模板列表
// @Summary 获取规则模板列表
// @Description 获取规则模板列表，支持按质量维度和规则类型筛选
// @Tags 规则模板
// @Accept json
// @Produce json
// @Param category query string false "质量维度"
// @Param rule_type query string false "规则类型"
// @Success 200 {object} APIResponse{data=[]models.ValidationRuleTemplate} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /validation/templates [get]
func (c *TemplateController) GetTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := c.templateService.ListTemplates(
		r.URL.Query().Get("category"),
		r.URL.Query().Get("rule_type"))
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取规则模板列表失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取规则模板列表成功",
		Data:   templates,
	})
}

// GetTemplateByID 获取规则模板详情
// @Summary 获取规则模板详情
// @Description 根据ID获取规则模板详情
// @Tags 规则模板
// @Accept json
// @Produce json
// @Param id path string true "模板ID"
// @Success 200 {object} APIResponse{data=models.ValidationRuleTemplate} "获取成功"
// @Failure 404 {object} APIResponse "模板不存在"
// @Router /validation/templates/{id} [get]
func (c *TemplateController) GetTemplateByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	template, err := c.templateService.GetTemplateByID(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusNotFound,
			Msg:    "规则模板不存在",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取规则模板详情成功",
		Data:   template,
	})
}

// CreateTemplate 创建自定义规则模板
// @Summary 创建自定义规则模板
// @Description 创建新的自定义规则模板
// @Tags 规则模板
// @Accept json
// @Produce json
// @Param template body models.ValidationRuleTemplate true "模板信息"
// @Success 201 {object} APIResponse{data=models.ValidationRuleTemplate} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /validation/templates [post]
func (c *TemplateController) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var template models.ValidationRuleTemplate
	if err := render.DecodeJSON(r.Body, &template); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	if err := c.templateService.CreateTemplate(&template); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "创建规则模板失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "创建规则模板成功",
		Data:   template,
	})
}

// UpdateTemplate 更新自定义规则模板
// @Summary 更新自定义规则模板
// @Description 更新自定义规则模板，内置模板不可修改
// @Tags 规则模板
// @Accept json
// @Produce json
// @Param id path string true "模板ID"
// @Param updates body object true "更新内容"
// @Success 200 {object} APIResponse{data=models.ValidationRuleTemplate} "更新成功"
// @Failure 404 {object} APIResponse "模板不存在"
// @Failure 409 {object} APIResponse "内置模板不可修改"
// @Router /validation/templates/{id} [put]
func (c *TemplateController) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var updates map[string]interface{}
	if err := render.DecodeJSON(r.Body, &updates); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	template, err := c.templateService.UpdateTemplate(id, updates)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "更新规则模板成功",
		Data:   template,
	})
}

// DeleteTemplate 删除自定义规则模板
// @Summary 删除自定义规则模板
// @Description 删除自定义规则模板，内置模板不可删除
// @Tags 规则模板
// @Accept json
// @Produce json
// @Param id path string true "模板ID"
// @Success 200 {object} APIResponse "删除成功"
// @Failure 409 {object} APIResponse "内置模板不可删除"
// @Router /validation/templates/{id} [delete]
func (c *TemplateController) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.templateService.DeleteTemplate(id); err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "删除规则模板成功",
	})
}

// InstantiateTemplate 从模板实例化规则
// @Summary 从模板实例化规则
// @Description 以模板为基础创建校验规则，条件可局部覆盖，模板使用计数递增
// @Tags 规则模板
// @Accept json
// @Produce json
// @Param id path string true "模板ID"
// @Param request body validation.InstantiateTemplateRequest true "实例化参数"
// @Success 201 {object} APIResponse{data=models.ValidationRule} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "模板不存在"
// @Router /validation/templates/{id}/instantiate [post]
func (c *TemplateController) InstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req validation.InstantiateTemplateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	rule, err := c.ruleService.InstantiateFromTemplate(id, &req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "模板实例化成功",
		Data:   rule,
	})
}

/*
 * @module api/controllers/validation_rule_controller
 * @description 校验规则控制器，提供规则的增删改查、启停切换、执行触发与实时校验接口
 * @architecture MVC架构 - 控制器层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式；执行触发为异步提交，返回执行记录供轮询
 * @dependencies vbkg-validation-service/service, github.com/go-chi/chi/v5
 * @refs service/validation/rule_service.go, service/validation/executor.go
 */

package controllers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"vbkg-validation-service/service"
	"vbkg-validation-service/service/models"
	"vbkg-validation-service/service/validation"
)

// ValidationRuleController 校验规则控制器
type ValidationRuleController struct {
	ruleService *validation.RuleService
	executor    *validation.Executor
	scheduler   *validation.Scheduler
}

// NewValidationRuleController 创建校验规则控制器实例
func NewValidationRuleController() *ValidationRuleController {
	return &ValidationRuleController{
		ruleService: service.GlobalRuleService,
		executor:    service.GlobalExecutor,
		scheduler:   service.GlobalScheduler,
	}
}

// CreateRule 创建校验规则
// @Summary 创建校验规则
// @Description 创建新的数据质量校验规则，条件结构必须符合规则类型的约束
// @Tags 校验规则
// @Accept json
// @Produce json
// @Param rule body validation.CreateRuleRequest true "校验规则信息"
// @Success 201 {object} APIResponse{data=models.ValidationRule} "创建成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /validation/rules [post]
func (c *ValidationRuleController) CreateRule(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateRuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	rule, err := c.ruleService.CreateRule(&req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    err.Error(),
		})
		return
	}

	c.reloadScheduler()
	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "创建校验规则成功",
		Data:   rule,
	})
}

// GetRules 获取校验规则列表
// @Summary 获取校验规则列表
// @Description 分页获取校验规则列表，支持按质量维度、严重级别、规则类型、启用状态和实体类型筛选
// @Tags 校验规则
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(20)
// @Param category query string false "质量维度" Enums(completeness,accuracy,consistency,validity,uniqueness,timeliness,relevance)
// @Param severity query string false "严重级别" Enums(low,medium,high,critical)
// @Param rule_type query string false "规则类型"
// @Param is_active query bool false "是否启用"
// @Param entity_type query string false "目标实体类型"
// @Success 200 {object} PaginatedResponse{data=[]models.ValidationRule} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /validation/rules [get]
func (c *ValidationRuleController) GetRules(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = validation.DefaultListLimit
	}

	filter := &validation.RuleListFilter{
		Category:   r.URL.Query().Get("category"),
		Severity:   r.URL.Query().Get("severity"),
		RuleType:   r.URL.Query().Get("rule_type"),
		EntityType: r.URL.Query().Get("entity_type"),
		Limit:      size,
		Offset:     (page - 1) * size,
	}
	if isActive := r.URL.Query().Get("is_active"); isActive != "" {
		active := isActive == "true"
		filter.IsActive = &active
	}

	rules, total, err := c.ruleService.ListRules(filter)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取校验规则列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取校验规则列表成功",
		Data:   rules,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetRuleByID 获取校验规则详情
// @Summary 获取校验规则详情
// @Description 根据ID获取校验规则详情
// @Tags 校验规则
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse{data=models.ValidationRule} "获取成功"
// @Failure 404 {object} APIResponse "规则不存在"
// @Router /validation/rules/{id} [get]
func (c *ValidationRuleController) GetRuleByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := c.ruleService.GetRuleByID(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取校验规则详情成功",
		Data:   rule,
	})
}

// UpdateRule 更新校验规则
// @Summary 更新校验规则
// @Description 部分更新校验规则，条件变更时重新校验条件结构
// @Tags 校验规则
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Param rule body validation.UpdateRuleRequest true "更新内容"
// @Success 200 {object} APIResponse{data=models.ValidationRule} "更新成功"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 404 {object} APIResponse "规则不存在"
// @Router /validation/rules/{id} [put]
func (c *ValidationRuleController) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req validation.UpdateRuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	rule, err := c.ruleService.UpdateRule(id, &req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	c.reloadScheduler()
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "更新校验规则成功",
		Data:   rule,
	})
}

// DeleteRule 删除校验规则
// @Summary 删除校验规则
// @Description 删除指定校验规则
// @Tags 校验规则
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse "删除成功"
// @Failure 404 {object} APIResponse "规则不存在"
// @Router /validation/rules/{id} [delete]
func (c *ValidationRuleController) DeleteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := c.ruleService.DeleteRule(id); err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	c.reloadScheduler()
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "删除校验规则成功",
	})
}

// ToggleRule 切换规则启停状态
// @Summary 切换规则启停状态
// @Description 启用或停用校验规则，历史统计保持不变
// @Tags 校验规则
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse{data=models.ValidationRule} "切换成功"
// @Failure 404 {object} APIResponse "规则不存在"
// @Router /validation/rules/{id}/toggle [post]
func (c *ValidationRuleController) ToggleRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := c.ruleService.ToggleRule(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	c.reloadScheduler()
	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "切换规则状态成功",
		Data:   rule,
	})
}

// ExecuteRule 触发单条规则执行
// @Summary 触发单条规则执行
// @Description 为指定规则创建执行记录并异步运行，返回执行记录供轮询
// @Tags 校验执行
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Param request body validation.ExecuteRuleRequest true "执行请求"
// @Success 202 {object} APIResponse{data=models.ValidationRuleExecution} "已提交执行"
// @Failure 404 {object} APIResponse "规则不存在"
// @Router /validation/rules/{id}/execute [post]
func (c *ValidationRuleController) ExecuteRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req validation.ExecuteRuleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	rule, err := c.ruleService.GetRuleByID(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: statusForError(err),
			Msg:    err.Error(),
		})
		return
	}

	execution, err := c.executor.CreateExecution(rule, &req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "创建执行记录失败",
		})
		return
	}

	go func() {
		if err := c.executor.StartExecution(context.Background(), execution.ID); err != nil {
			slog.Error("规则执行失败", "execution_id", execution.ID, "rule_id", rule.ID, "error", err)
		}
	}()

	render.JSON(w, r, APIResponse{
		Status: http.StatusAccepted,
		Msg:    "已提交规则执行",
		Data:   execution,
	})
}

// ExecuteBatch 批量触发规则执行
// @Summary 批量触发规则执行
// @Description 按规则ID列表或质量维度+实体类型批量触发执行，每条规则独立运行
// @Tags 校验执行
// @Accept json
// @Produce json
// @Param request body validation.ExecuteBatchRequest true "批量执行请求"
// @Success 202 {object} APIResponse{data=validation.BatchExecuteResponse} "已提交执行"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /validation/rules/execute-batch [post]
func (c *ValidationRuleController) ExecuteBatch(w http.ResponseWriter, r *http.Request) {
	var req validation.ExecuteBatchRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	if len(req.RuleIDs) == 0 && req.Category == "" && req.EntityType == "" {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "必须指定 rule_ids 或 category/entity_type",
		})
		return
	}

	rules, err := c.resolveBatchRules(&req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "解析执行规则集合失败",
		})
		return
	}

	result, err := c.executor.ExecuteBatch(rules, &req)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "提交批量执行失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusAccepted,
		Msg:    result.Message,
		Data:   result,
	})
}

// ValidateRecord 实时校验单条记录
// @Summary 实时校验单条记录
// @Description 对单条记录运行实时模式的字段、格式与业务逻辑规则，全量类检查不参与
// @Tags 校验执行
// @Accept json
// @Produce json
// @Param record body RealtimeValidateRequest true "待校验记录"
// @Success 200 {object} APIResponse{data=RealtimeValidateResponse} "校验完成"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Router /validation/validate-record [post]
func (c *ValidationRuleController) ValidateRecord(w http.ResponseWriter, r *http.Request) {
	var req RealtimeValidateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	record := &validation.TargetRecord{
		ID:         req.RecordID,
		EntityType: req.EntityType,
		Properties: req.Properties,
	}
	failures, err := c.executor.ValidateRecord(r.Context(), record)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "实时校验失败",
		})
		return
	}

	violations := make([]RealtimeViolation, 0, len(failures))
	for _, f := range failures {
		violations = append(violations, RealtimeViolation{
			Message:       f.Message,
			FieldName:     f.FieldName,
			ExpectedValue: f.ExpectedValue,
			ActualValue:   f.ActualValue,
		})
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "实时校验完成",
		Data: RealtimeValidateResponse{
			Passed:     len(violations) == 0,
			Violations: violations,
		},
	})
}

// RealtimeValidateRequest 实时校验请求
type RealtimeValidateRequest struct {
	RecordID   string                 `json:"record_id,omitempty"`
	EntityType string                 `json:"entity_type" binding:"required"`
	Properties map[string]interface{} `json:"properties" binding:"required" swaggertype:"object"`
}

// RealtimeViolation 实时校验违规项
type RealtimeViolation struct {
	Message       string `json:"message"`
	FieldName     string `json:"field_name,omitempty"`
	ExpectedValue string `json:"expected_value,omitempty"`
	ActualValue   string `json:"actual_value,omitempty"`
}

// RealtimeValidateResponse 实时校验响应
type RealtimeValidateResponse struct {
	Passed     bool                `json:"passed"`
	Violations []RealtimeViolation `json:"violations"`
}

// resolveBatchRules 解析批量执行请求的规则集合
func (c *ValidationRuleController) resolveBatchRules(req *validation.ExecuteBatchRequest) ([]models.ValidationRule, error) {
	if len(req.RuleIDs) > 0 {
		return c.ruleService.ListRulesByIDs(req.RuleIDs)
	}
	return c.ruleService.SelectRules(req.Category, req.EntityType)
}

// reloadScheduler 规则变更后刷新定时调度
func (c *ValidationRuleController) reloadScheduler() {
	if c.scheduler == nil {
		return
	}
	if err := c.scheduler.Reload(); err != nil {
		slog.Warn("刷新定时调度失败", "error", err)
	}
}

package controllers

import (
	"errors"
	"net/http"

	"vbkg-validation-service/service/pipeline"
	"vbkg-validation-service/service/validation"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"200"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// PaginatedResponse 分页响应结构
type PaginatedResponse struct {
	Status int         `json:"status" example:"200"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total" example:"100"`
	Page   int         `json:"page" example:"1"`
	Size   int         `json:"size" example:"10"`
}

// statusForError 业务错误到HTTP状态码的映射
func statusForError(err error) int {
	switch {
	case errors.Is(err, validation.ErrRuleNotFound),
		errors.Is(err, validation.ErrExecutionNotFound),
		errors.Is(err, validation.ErrViolationNotFound),
		errors.Is(err, validation.ErrTemplateNotFound),
		errors.Is(err, pipeline.ErrGateNotFound):
		return http.StatusNotFound
	case errors.Is(err, validation.ErrInvalidConditionShape),
		errors.Is(err, validation.ErrExecutionNotCancellable):
		return http.StatusBadRequest
	case errors.Is(err, validation.ErrConcurrentClaim),
		errors.Is(err, validation.ErrTemplateImmutable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

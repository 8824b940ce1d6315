/*
 * @module service/validation/custom_hook
 * @description 基于 Yaegi 的自定义校验钩子，在解释器沙箱内执行规则脚本
 * @architecture 分层架构 - 业务服务层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 脚本哈希 -> 缓存查找 -> 编译 -> 执行
 * @rules 脚本必须提供 Validate 函数；脚本崩溃只影响当前执行，不影响兄弟执行
 * @dependencies github.com/traefik/yaegi
 * @refs service/validation/condition_evaluator.go
 */

package validation

import (
	"context"
	"crypto/sha1"
	"fmt"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// YaegiHook Yaegi 脚本钩子实现，支持编译缓存
type YaegiHook struct {
	mu    sync.RWMutex
	cache map[string]*compiledValidator
}

// compiledValidator 编译后的校验函数
type compiledValidator struct {
	fn func(map[string]interface{}) (bool, string, error)
}

// NewYaegiHook 创建 Yaegi 脚本钩子实例
func NewYaegiHook() *YaegiHook {
	return &YaegiHook{
		cache: make(map[string]*compiledValidator),
	}
}

// Evaluate 对单条记录执行自定义校验脚本
func (y *YaegiHook) Evaluate(ctx context.Context, script string, record map[string]interface{}) (passed bool, message string, err error) {
	if script == "" {
		return false, "", fmt.Errorf("自定义校验脚本为空")
	}

	hash := fmt.Sprintf("%x", sha1.Sum([]byte(script)))

	y.mu.RLock()
	compiled, ok := y.cache[hash]
	y.mu.RUnlock()

	if !ok {
		compiled, err = y.compile(script)
		if err != nil {
			return false, "", err
		}
		y.mu.Lock()
		y.cache[hash] = compiled
		y.mu.Unlock()
	}

	// 脚本内的 panic 只影响当前执行
	defer func() {
		if r := recover(); r != nil {
			passed = false
			err = fmt.Errorf("自定义校验脚本崩溃: %v", r)
		}
	}()

	return compiled.fn(record)
}

// compile 编译脚本为可执行的校验函数
func (y *YaegiHook) compile(script string) (*compiledValidator, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	// 包装脚本：要求脚本必须实现一个 Validate 函数
	wrapped := fmt.Sprintf(`
package main

import (
	"fmt"
	"strings"
	"strconv"
	"time"
	"regexp"
)

// 必须提供一个 Validate 函数作为入口
func Validate(record map[string]interface{}) (bool, string, error) {
%s
}
`, script)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("脚本编译失败: %w", err)
	}

	v, err := i.Eval("Validate")
	if err != nil {
		return nil, fmt.Errorf("脚本缺少 Validate 函数: %w", err)
	}

	fn, ok := v.Interface().(func(map[string]interface{}) (bool, string, error))
	if !ok {
		return nil, fmt.Errorf("Validate 函数签名必须是 func(map[string]interface{}) (bool, string, error)")
	}

	return &compiledValidator{fn: fn}, nil
}

// Validate 校验脚本语法，不执行
func (y *YaegiHook) Validate(script string) error {
	_, err := y.compile(script)
	return err
}

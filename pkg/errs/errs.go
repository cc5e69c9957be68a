// Package errs 定义了网关与分类器共享的错误分类。
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 标识一类错误。
type Kind string

const (
	KindConnection      Kind = "ConnectionError"
	KindQuery           Kind = "QueryError"
	KindConfiguration   Kind = "ConfigurationError"
	KindModelNotTrained Kind = "ModelNotTrainedError"
	KindValidation      Kind = "ValidationError"
	KindNotFound        Kind = "NotFoundError"
)

// 用于 errors.Is 判断的哨兵值，只比较 Kind。
var (
	ErrConnection      = &Error{Kind: KindConnection}
	ErrQuery           = &Error{Kind: KindQuery}
	ErrConfiguration   = &Error{Kind: KindConfiguration}
	ErrModelNotTrained = &Error{Kind: KindModelNotTrained}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrNotFound        = &Error{Kind: KindNotFound}
)

// Error 携带错误类别、发生的操作、可读信息以及底层错误。
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	detail := e.Msg
	if e.Err != nil {
		if detail != "" {
			detail += ": " + e.Err.Error()
		} else {
			detail = e.Err.Error()
		}
	}
	if detail == "" {
		detail = string(e.Kind)
	}
	if e.Op == "" {
		return detail
	}
	return e.Op + ": " + detail
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, errs.ErrQuery) 这类判断按 Kind 匹配。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Connection 包装无法连接后端存储的错误。
func Connection(op string, err error) error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

// Query 包装一次失败的数据库操作。
func Query(op string, err error) error {
	return &Error{Kind: KindQuery, Op: op, Err: err}
}

func Configuration(op, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ModelNotTrained 表示在没有任何可用模型时调用了预测或评估。
func ModelNotTrained(op string) error {
	return &Error{Kind: KindModelNotTrained, Op: op, Msg: "model has not been trained"}
}

// KindOf 返回错误链中第一个 *Error 的类别，没有则返回空字符串。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus 将错误类别映射为 HTTP 状态码。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindModelNotTrained:
		return http.StatusConflict
	case KindConfiguration:
		return http.StatusUnprocessableEntity
	case KindConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

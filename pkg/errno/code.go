package errno

import (
	"errors"
	"fmt"
)

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

// BizError 业务错误，保留原始错误用于日志
type BizError struct {
	Errno *Errno
	Cause error
}

func (e *BizError) Error() string {
	if e.Cause == nil {
		return e.Errno.Message
	}
	return fmt.Sprintf("%s: %v", e.Errno.Message, e.Cause)
}

func (e *BizError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Errno}
	}
	return []error{e.Errno, e.Cause}
}

// NewBizError 包装底层错误
func NewBizError(no *Errno, cause error) error {
	return &BizError{Errno: no, Cause: cause}
}

// FromError 从错误链中取出 Errno，找不到时返回 ErrInternalServer
func FromError(err error) *Errno {
	if err == nil {
		return OK
	}
	var no *Errno
	if errors.As(err, &no) {
		return no
	}
	return ErrInternalServer
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrUnauthorized = &Errno{Code: 401, Message: "Unauthorized"}
	ErrNotFound     = &Errno{Code: 404, Message: "Not found"}
	ErrConflict     = &Errno{Code: 409, Message: "Conflict"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 业务错误码
	ErrMissingParam = &Errno{Code: 20001, Message: "Missing required parameter"}

	// runner 相关
	ErrRunnerTokenRequired       = &Errno{Code: 20101, Message: "Runner token is required"}
	ErrRunnerNotFound            = &Errno{Code: 20102, Message: "Unknown runner"}
	ErrRegistrationTokenRequired = &Errno{Code: 20103, Message: "Registration token is required"}
	ErrRegistrationTokenNotFound = &Errno{Code: 20104, Message: "Unknown registration token"}
	ErrRunnerNameRequired        = &Errno{Code: 20105, Message: "Runner name is required"}

	// runner job 相关
	ErrJobUUIDRequired    = &Errno{Code: 20201, Message: "Job UUID is required"}
	ErrJobNotFound        = &Errno{Code: 20202, Message: "Runner job not found"}
	ErrJobNotAvailable    = &Errno{Code: 20203, Message: "Job is no longer available"}
	ErrJobTokenRequired   = &Errno{Code: 20204, Message: "Job token is required"}
	ErrJobTokenMismatch   = &Errno{Code: 20205, Message: "Job token does not match"}
	ErrInvalidProgress    = &Errno{Code: 20206, Message: "Progress must be between 0 and 100"}
	ErrInvalidJobState    = &Errno{Code: 20207, Message: "Invalid job state"}
	ErrErrorMessageNeeded = &Errno{Code: 20208, Message: "Error message is required"}
	ErrInvalidJobPayload  = &Errno{Code: 20209, Message: "Invalid job payload"}

	// video 相关
	ErrVideoUUIDRequired = &Errno{Code: 20301, Message: "Video UUID is required"}
	ErrVideoNotFound     = &Errno{Code: 20302, Message: "Video not found"}
	ErrInvalidVideoState = &Errno{Code: 20303, Message: "Video is not in a state that allows this operation"}
	ErrInvalidFps        = &Errno{Code: 20304, Message: "Invalid input fps"}
	ErrProbeFailed       = &Errno{Code: 20305, Message: "Media probe failed"}
)

// HTTPStatus 把 Errno 映射为 HTTP 状态码
func HTTPStatus(no *Errno) int {
	if no == nil {
		return 500
	}
	switch {
	case no.Code >= 400 && no.Code < 600:
		return no.Code
	case no == ErrRunnerNotFound, no == ErrRegistrationTokenNotFound, no == ErrJobNotFound, no == ErrVideoNotFound:
		return 404
	case no == ErrJobNotAvailable, no == ErrInvalidJobState, no == ErrInvalidVideoState:
		return 409
	case no.Code >= 20000:
		return 400
	default:
		return 500
	}
}

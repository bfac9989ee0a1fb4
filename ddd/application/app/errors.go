package app

import (
	"errors"

	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/domain/service"
	"transcode-orchestrator/pkg/errno"
)

// toBizError 把领域错误映射为带 errno 的业务错误
func toBizError(err error) error {
	if err == nil {
		return nil
	}
	var no *errno.Errno
	if errors.As(err, &no) {
		return err
	}

	switch {
	case errors.Is(err, entity.ErrJobNotFound):
		return errno.NewBizError(errno.ErrJobNotFound, err)
	case errors.Is(err, entity.ErrRunnerNotFound):
		return errno.NewBizError(errno.ErrRunnerNotFound, err)
	case errors.Is(err, entity.ErrRegistrationTokenNotFound):
		return errno.NewBizError(errno.ErrRegistrationTokenNotFound, err)
	case errors.Is(err, entity.ErrVideoNotFound):
		return errno.NewBizError(errno.ErrVideoNotFound, err)
	case errors.Is(err, entity.ErrInvalidVideoState):
		return errno.NewBizError(errno.ErrInvalidVideoState, err)
	case errors.Is(err, service.ErrInvalidFps):
		return errno.NewBizError(errno.ErrInvalidFps, err)
	case errors.Is(err, service.ErrProbeFailed):
		return errno.NewBizError(errno.ErrProbeFailed, err)
	}

	switch entity.KindOf(err) {
	case entity.KindConflict:
		return errno.NewBizError(errno.ErrConflict, err)
	case entity.KindValidation:
		return errno.NewBizError(errno.ErrInvalidParam, err)
	}

	var domainErr *entity.DomainError
	if errors.As(err, &domainErr) {
		return errno.NewBizError(errno.ErrInvalidParam, err)
	}
	return errno.NewBizError(errno.ErrInternalServer, err)
}

package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transcode-orchestrator/pkg/errno"
	"transcode-orchestrator/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Success 返回成功响应
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:      errno.OK.Code,
		Message:   errno.OK.Message,
		Data:      data,
		RequestID: ctx.GetString("request_id"),
	})
}

// NoContent 返回 204
func NoContent(ctx *gin.Context) {
	ctx.Status(http.StatusNoContent)
}

// Failed 返回失败响应，HTTP 状态码由 errno 推导
func Failed(ctx *gin.Context, err error) {
	no := errno.FromError(err)
	status := errno.HTTPStatus(no)
	if status >= http.StatusInternalServerError {
		logger.Errorf("request failed path=%s request_id=%s error=%v", ctx.FullPath(), ctx.GetString("request_id"), err)
	}
	ctx.AbortWithStatusJSON(status, Response{
		Code:      no.Code,
		Message:   no.Message,
		RequestID: ctx.GetString("request_id"),
	})
}

// BadRequest 参数绑定失败
func BadRequest(ctx *gin.Context, err error) {
	Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
}

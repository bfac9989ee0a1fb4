package http

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/ddd/application/cqe"
	"transcode-orchestrator/pkg/restapi"
)

// maxMultipartMemory 超出部分由 gin 落到临时文件
const maxMultipartMemory = 32 << 20

// RunnerController runner 协议控制器
type RunnerController struct {
	dispatchApp app.RunnerDispatchApp
}

// NewRunnerController 创建 runner 协议控制器
func NewRunnerController(dispatchApp app.RunnerDispatchApp) *RunnerController {
	return &RunnerController{dispatchApp: dispatchApp}
}

// Register 注册 runner
func (c *RunnerController) Register(ctx *gin.Context) {
	var req cqe.RegisterRunnerReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	if req.IP == "" {
		req.IP = ctx.ClientIP()
	}
	resp, err := c.dispatchApp.Register(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// Unregister 注销 runner，处理中的 job 按失败处理
func (c *RunnerController) Unregister(ctx *gin.Context) {
	var req cqe.RunnerAuthReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	if err := c.dispatchApp.Unregister(ctx.Request.Context(), &req); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.NoContent(ctx)
}

// RequestJobs 拉取可领取任务
func (c *RunnerController) RequestJobs(ctx *gin.Context) {
	var req cqe.RequestJobsReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	resp, err := c.dispatchApp.RequestJobs(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// Accept 领取任务
func (c *RunnerController) Accept(ctx *gin.Context) {
	var req cqe.RunnerAuthReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	resp, err := c.dispatchApp.Accept(ctx.Request.Context(), ctx.Param("job_uuid"), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// Update 进度上报
func (c *RunnerController) Update(ctx *gin.Context) {
	var req cqe.UpdateJobReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	if err := c.dispatchApp.Update(ctx.Request.Context(), ctx.Param("job_uuid"), &req); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.NoContent(ctx)
}

// Success 成功上报，支持 JSON 与 multipart 两种格式
func (c *RunnerController) Success(ctx *gin.Context) {
	var (
		req     cqe.SuccessJobReq
		uploads []cqe.UploadedFile
	)
	if isMultipart(ctx) {
		form, err := ctx.MultipartForm()
		if err != nil {
			restapi.BadRequest(ctx, err)
			return
		}
		req.RunnerToken = formValue(form, "runnerToken")
		req.JobToken = formValue(form, "jobToken")
		req.Payload.VideoFile = formValue(form, "payload[videoFile]")
		req.Payload.ResolutionPlaylistFile = formValue(form, "payload[resolutionPlaylistFile]")
		uploads = uploadedFiles(form)
	} else if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}

	if err := c.dispatchApp.Success(ctx.Request.Context(), ctx.Param("job_uuid"), &req, uploads); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.NoContent(ctx)
}

// Error 失败上报
func (c *RunnerController) Error(ctx *gin.Context) {
	var req cqe.ErrorJobReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	if err := c.dispatchApp.Error(ctx.Request.Context(), ctx.Param("job_uuid"), &req); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.NoContent(ctx)
}

// Abort 放弃任务
func (c *RunnerController) Abort(ctx *gin.Context) {
	var req cqe.AbortJobReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	if err := c.dispatchApp.Abort(ctx.Request.Context(), ctx.Param("job_uuid"), &req); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.NoContent(ctx)
}

// DownloadVideo 下载源文件
func (c *RunnerController) DownloadVideo(ctx *gin.Context) {
	c.download(ctx, false)
}

// DownloadPreview 下载预览图
func (c *RunnerController) DownloadPreview(ctx *gin.Context) {
	c.download(ctx, true)
}

func (c *RunnerController) download(ctx *gin.Context, preview bool) {
	var req cqe.DownloadFileReq
	if err := ctx.ShouldBind(&req.JobAuthReq); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	req.JobUUID = ctx.Param("job_uuid")
	req.VideoUUID = ctx.Param("video_uuid")
	req.Preview = preview

	file, err := c.dispatchApp.DownloadInput(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	defer file.Reader.Close()

	contentType := mime.TypeByExtension(filepath.Ext(file.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.DataFromReader(http.StatusOK, file.Size, contentType, file.Reader, map[string]string{
		"Content-Disposition": `attachment; filename="` + file.Name + `"`,
	})
}

func isMultipart(ctx *gin.Context) bool {
	return strings.HasPrefix(ctx.ContentType(), "multipart/form-data")
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func uploadedFiles(form *multipart.Form) []cqe.UploadedFile {
	var files []cqe.UploadedFile
	for field, headers := range form.File {
		for _, fh := range headers {
			fh := fh
			files = append(files, cqe.UploadedFile{
				Field:    field,
				Filename: fh.Filename,
				Size:     fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	}
	return files
}

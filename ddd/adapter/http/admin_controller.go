package http

import (
	"github.com/gin-gonic/gin"

	"transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/ddd/application/cqe"
	"transcode-orchestrator/pkg/restapi"
)

// AdminController 管理端接口
type AdminController struct {
	runnerAdminApp app.RunnerAdminApp
	jobAdminApp    app.JobAdminApp
	videoApp       app.VideoApp
}

// NewAdminController 创建管理端控制器
func NewAdminController(runnerAdminApp app.RunnerAdminApp, jobAdminApp app.JobAdminApp, videoApp app.VideoApp) *AdminController {
	return &AdminController{
		runnerAdminApp: runnerAdminApp,
		jobAdminApp:    jobAdminApp,
		videoApp:       videoApp,
	}
}

// CreateRegistrationToken 生成 runner 注册令牌
func (c *AdminController) CreateRegistrationToken(ctx *gin.Context) {
	resp, err := c.runnerAdminApp.CreateRegistrationToken(ctx.Request.Context())
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

func (c *AdminController) ListRegistrationTokens(ctx *gin.Context) {
	resp, err := c.runnerAdminApp.ListRegistrationTokens(ctx.Request.Context())
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

func (c *AdminController) ListRunners(ctx *gin.Context) {
	var query cqe.PageQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	resp, err := c.runnerAdminApp.ListRunners(ctx.Request.Context(), &query)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// ListJobs 按状态分页查询任务
func (c *AdminController) ListJobs(ctx *gin.Context) {
	var query cqe.ListJobsQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	resp, err := c.jobAdminApp.List(ctx.Request.Context(), &query)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

func (c *AdminController) GetJob(ctx *gin.Context) {
	resp, err := c.jobAdminApp.Get(ctx.Request.Context(), ctx.Param("job_uuid"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// CancelJob 取消任务
func (c *AdminController) CancelJob(ctx *gin.Context) {
	resp, err := c.jobAdminApp.Cancel(ctx.Request.Context(), ctx.Param("job_uuid"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// TranscodeVideo 为视频生成转码任务图
func (c *AdminController) TranscodeVideo(ctx *gin.Context) {
	var req cqe.TranscodeVideoReq
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			restapi.BadRequest(ctx, err)
			return
		}
	}
	req.VideoUUID = ctx.Param("video_uuid")
	resp, err := c.videoApp.Transcode(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

func (c *AdminController) StudioEdit(ctx *gin.Context) {
	var req cqe.StudioEditReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	req.VideoUUID = ctx.Param("video_uuid")
	resp, err := c.videoApp.StudioEdit(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

func (c *AdminController) StartLive(ctx *gin.Context) {
	var req cqe.StartLiveReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.BadRequest(ctx, err)
		return
	}
	req.VideoUUID = ctx.Param("video_uuid")
	resp, err := c.videoApp.StartLive(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

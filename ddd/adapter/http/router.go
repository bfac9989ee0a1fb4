package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transcode-orchestrator/ddd/application/app"
	"transcode-orchestrator/pkg/manager"
)

func init() {
	manager.RegisterRoutePlugin(&RoutePlugin{})
}

// RoutePlugin 延迟到注册路由时再获取应用单例，此时引擎已初始化
type RoutePlugin struct{}

func (p *RoutePlugin) Name() string { return "orchestratorRoutes" }

func (p *RoutePlugin) RegisterRoutes(engine *gin.Engine) {
	NewRouter(app.DefaultRunnerDispatchApp(), app.DefaultRunnerAdminApp(), app.DefaultJobAdminApp(), app.DefaultVideoApp()).
		SetupRoutes(engine)
}

// Router 路由配置
type Router struct {
	dispatchApp    app.RunnerDispatchApp
	runnerAdminApp app.RunnerAdminApp
	jobAdminApp    app.JobAdminApp
	videoApp       app.VideoApp
}

// NewRouter 创建路由配置
func NewRouter(dispatchApp app.RunnerDispatchApp, runnerAdminApp app.RunnerAdminApp, jobAdminApp app.JobAdminApp, videoApp app.VideoApp) *Router {
	return &Router{
		dispatchApp:    dispatchApp,
		runnerAdminApp: runnerAdminApp,
		jobAdminApp:    jobAdminApp,
		videoApp:       videoApp,
	}
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.MaxMultipartMemory = maxMultipartMemory

	runnerController := NewRunnerController(r.dispatchApp)
	adminController := NewAdminController(r.runnerAdminApp, r.jobAdminApp, r.videoApp)

	v1 := engine.Group("/api/v1")
	{
		// runner 注册
		runners := v1.Group("/runners")
		{
			runners.POST("/register", runnerController.Register)
			runners.POST("/unregister", runnerController.Unregister)
		}

		// runner 任务协议
		jobs := v1.Group("/jobs")
		{
			jobs.POST("/request", runnerController.RequestJobs)
			jobs.POST("/:job_uuid/accept", runnerController.Accept)
			jobs.POST("/:job_uuid/update", runnerController.Update)
			jobs.POST("/:job_uuid/success", runnerController.Success)
			jobs.POST("/:job_uuid/error", runnerController.Error)
			jobs.POST("/:job_uuid/abort", runnerController.Abort)

			jobs.POST("/:job_uuid/files/videos/:video_uuid/max-quality", runnerController.DownloadVideo)
			jobs.POST("/:job_uuid/files/videos/:video_uuid/previews/max-quality", runnerController.DownloadPreview)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/runners/registration-tokens", adminController.CreateRegistrationToken)
			admin.GET("/runners/registration-tokens", adminController.ListRegistrationTokens)
			admin.GET("/runners", adminController.ListRunners)

			admin.GET("/jobs", adminController.ListJobs)
			admin.GET("/jobs/:job_uuid", adminController.GetJob)
			admin.POST("/jobs/:job_uuid/cancel", adminController.CancelJob)

			admin.POST("/videos/:video_uuid/transcode", adminController.TranscodeVideo)
			admin.POST("/videos/:video_uuid/studio", adminController.StudioEdit)
			admin.POST("/videos/:video_uuid/live", adminController.StartLive)
		}
	}

	// 健康检查路由
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "transcode-orchestrator",
		})
	})
}

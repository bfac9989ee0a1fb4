package manager

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"transcode-orchestrator/pkg/config"
	"transcode-orchestrator/pkg/logger"
)

// Resource is an infrastructure handle opened once at startup (db, redis, kafka, minio).
type Resource interface {
	MustOpen()
	Close()
}

// ResourcePlugin creates a Resource.
type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component is a long-lived runtime part such as a consumer or a sweeper.
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

// ComponentPlugin creates a Component from the shared dependencies.
type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// RoutePlugin mounts HTTP routes.
type RoutePlugin interface {
	Name() string
	RegisterRoutes(engine *gin.Engine)
}

// Dependencies 组件初始化依赖
type Dependencies struct {
	DB     *gorm.DB
	Config *config.Config
}

type registry struct {
	mu               sync.Mutex
	resourcePlugins  []ResourcePlugin
	componentPlugins []ComponentPlugin
	routePlugins     []RoutePlugin
	resources        []namedResource
	components       []Component
}

type namedResource struct {
	name string
	res  Resource
}

var defaultRegistry = &registry{}

// RegisterResourcePlugin 注册资源插件
func RegisterResourcePlugin(p ResourcePlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.resourcePlugins = append(defaultRegistry.resourcePlugins, p)
}

// RegisterComponentPlugin 注册组件插件
func RegisterComponentPlugin(p ComponentPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.componentPlugins = append(defaultRegistry.componentPlugins, p)
}

// RegisterRoutePlugin 注册路由插件
func RegisterRoutePlugin(p RoutePlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.routePlugins = append(defaultRegistry.routePlugins, p)
}

// MustInitResources opens every registered resource, panicking on the first failure.
func MustInitResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.resourcePlugins {
		res := p.MustCreateResource()
		res.MustOpen()
		defaultRegistry.resources = append(defaultRegistry.resources, namedResource{name: p.Name(), res: res})
		logger.Infof("Resource opened name=%s", p.Name())
	}
}

// CloseResources closes resources in reverse opening order.
func CloseResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.resources) - 1; i >= 0; i-- {
		r := defaultRegistry.resources[i]
		r.res.Close()
		logger.Infof("Resource closed name=%s", r.name)
	}
	defaultRegistry.resources = nil
}

// MustInitComponents creates and starts every registered component.
func MustInitComponents(deps *Dependencies) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.componentPlugins {
		c := p.MustCreateComponent(deps)
		if c == nil {
			logger.Infof("Component skipped name=%s", p.Name())
			continue
		}
		if err := c.Start(); err != nil {
			panic(fmt.Sprintf("start component %s: %v", p.Name(), err))
		}
		defaultRegistry.components = append(defaultRegistry.components, c)
		logger.Infof("Component started name=%s", c.GetName())
	}
}

// RegisterAllRoutes mounts every route plugin on the engine.
func RegisterAllRoutes(engine *gin.Engine) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.routePlugins {
		p.RegisterRoutes(engine)
		logger.Infof("Routes registered plugin=%s", p.Name())
	}
}

// Shutdown stops components in reverse start order.
func Shutdown() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.components) - 1; i >= 0; i-- {
		c := defaultRegistry.components[i]
		if err := c.Stop(); err != nil {
			logger.Warnf("Component stop failed name=%s error=%v", c.GetName(), err)
		}
	}
	defaultRegistry.components = nil
}

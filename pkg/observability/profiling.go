package observability

import (
	"os"

	"github.com/grafana/pyroscope-go"

	"transcode-orchestrator/pkg/logger"
)

var profiler *pyroscope.Profiler

// StartProfiling starts continuous profiling when a pyroscope server is configured.
// PYROSCOPE_SERVER_ADDRESS takes precedence over the address argument.
func StartProfiling(appName, serverAddress, authToken string) {
	if env := os.Getenv("PYROSCOPE_SERVER_ADDRESS"); env != "" {
		serverAddress = env
	}
	if serverAddress == "" {
		return
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   serverAddress,
		AuthToken:       authToken,
		Tags:            map[string]string{"hostname": hostname()},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warnf("pyroscope start failed server=%s error=%v", serverAddress, err)
		return
	}
	profiler = p
	logger.Infof("pyroscope profiling started app=%s server=%s", appName, serverAddress)
}

// StopProfiling flushes and stops the profiler.
func StopProfiling() {
	if profiler != nil {
		_ = profiler.Stop()
		profiler = nil
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

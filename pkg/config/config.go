package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// Config 应用配置
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Kafka           KafkaConfig           `mapstructure:"kafka"`
	JWT             JWTConfig             `mapstructure:"jwt"`
	Log             LogConfig             `mapstructure:"log"`
	Minio           MinioConfig           `mapstructure:"minio"`
	Transcode       TranscodeConfig       `mapstructure:"transcode"`
	Live            LiveConfig            `mapstructure:"live"`
	ObjectStorage   ObjectStorageConfig   `mapstructure:"object_storage"`
	Dispatch        DispatchConfig        `mapstructure:"dispatch"`
	Scheduler       SchedulerConfig       `mapstructure:"scheduler"`
	ServiceRegistry ServiceRegistryConfig `mapstructure:"service_registry"`
	Etcd            EtcdConfig            `mapstructure:"etcd"`
	GRPCServer      GRPCServerConfig      `mapstructure:"grpc_server"`
	Pyroscope       PyroscopeConfig       `mapstructure:"pyroscope"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Charset         string        `mapstructure:"charset"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	EnableTLS    bool          `mapstructure:"enable_tls"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	BootstrapServers     []string          `mapstructure:"bootstrap_servers"`
	ClientID             string            `mapstructure:"client_id"`
	GroupID              string            `mapstructure:"group_id"`
	Enabled              bool              `mapstructure:"enabled"`
	Topics               KafkaTopicsConfig `mapstructure:"topics"`
	CommitOnDecodeError  bool              `mapstructure:"commit_on_decode_error"`
	CommitOnProcessError bool              `mapstructure:"commit_on_process_error"`
}

type KafkaTopicsConfig struct {
	AssetIngested     string `mapstructure:"asset_ingested"`
	StorageMove       string `mapstructure:"storage_move"`
	AssetStateChanged string `mapstructure:"asset_state_changed"`
}

// JWTConfig runner token 签名配置
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// MinioConfig MinIO配置
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKey       string `mapstructure:"access_key"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// TranscodeConfig VOD 转码阶梯配置
type TranscodeConfig struct {
	Resolutions          map[string]bool `mapstructure:"resolutions"`
	WebVideosEnabled     bool            `mapstructure:"web_videos_enabled"`
	HLSEnabled           bool            `mapstructure:"hls_enabled"`
	AudioMergeResolution int             `mapstructure:"audio_merge_resolution"`
	StorageRoot          string          `mapstructure:"storage_root"`
	InputDir             string          `mapstructure:"input_dir"`
	StagingDir           string          `mapstructure:"staging_dir"`
	FFprobePath          string          `mapstructure:"ffprobe_path"`
	ProbeTimeout         time.Duration   `mapstructure:"probe_timeout"`
	BasePriority         int             `mapstructure:"base_priority"`
}

// LiveConfig 直播转码配置
type LiveConfig struct {
	Resolutions         map[string]bool `mapstructure:"resolutions"`
	KeepInputResolution bool            `mapstructure:"keep_input_resolution"`
	SegmentDuration     int             `mapstructure:"segment_duration"`
	SegmentListSize     int             `mapstructure:"segment_list_size"`
}

// ObjectStorageConfig 外部存储迁移配置
type ObjectStorageConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	KeyPrefix         string `mapstructure:"key_prefix"`
	UploadConcurrency int    `mapstructure:"upload_concurrency"`
}

// DispatchConfig runner 调度协议配置
type DispatchConfig struct {
	AvailableJobsLimit int           `mapstructure:"available_jobs_limit"`
	ContactThrottle    time.Duration `mapstructure:"contact_throttle"`
	RunnerCacheSize    int           `mapstructure:"runner_cache_size"`
	RunnerCacheTTL     time.Duration `mapstructure:"runner_cache_ttl"`
	NotifyChannel      string        `mapstructure:"notify_channel"`
	PublicURL          string        `mapstructure:"public_url"`
	MaxRequestWait     time.Duration `mapstructure:"max_request_wait"`
}

// SchedulerConfig 调度器相关配置
type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxFailures     int           `mapstructure:"max_failures"`
	JobStaleTimeout time.Duration `mapstructure:"job_stale_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	SweepBatchSize  int           `mapstructure:"sweep_batch_size"`
}

// ServiceRegistryConfig registration configuration.
type ServiceRegistryConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ServiceName  string        `mapstructure:"service_name"`
	ServiceID    string        `mapstructure:"service_id"`
	RegisterHost string        `mapstructure:"register_host"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// EtcdConfig etcd client configuration.
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// GRPCServerConfig gRPC server configuration.
type GRPCServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// PyroscopeConfig continuous profiling.
type PyroscopeConfig struct {
	ServerAddress string `mapstructure:"server_address"`
	AuthToken     string `mapstructure:"auth_token"`
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.client_id", "transcode-orchestrator")
	v.SetDefault("kafka.group_id", "transcode-orchestrator-group")
	v.SetDefault("kafka.bootstrap_servers", []string{"localhost:29092"})
	v.SetDefault("kafka.topics.asset_ingested", "asset.ingested")
	v.SetDefault("kafka.topics.storage_move", "asset.storage-move")
	v.SetDefault("kafka.topics.asset_state_changed", "asset.state-changed")
	v.SetDefault("kafka.commit_on_decode_error", true)
	v.SetDefault("transcode.web_videos_enabled", true)
	v.SetDefault("transcode.hls_enabled", true)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("database.auto_migrate", true)

	// 设置环境变量前缀
	v.SetEnvPrefix("TRANSCODE_ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.normalize()

	return &config, nil
}

// normalize 补全配置的默认值
func (c *Config) normalize() {
	if c.Minio.AccessKeyID == "" {
		c.Minio.AccessKeyID = c.Minio.AccessKey
	}
	if c.Minio.SecretAccessKey == "" {
		c.Minio.SecretAccessKey = c.Minio.SecretKey
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8083
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}

	if len(c.Transcode.Resolutions) == 0 {
		c.Transcode.Resolutions = map[string]bool{
			"0": false, "144": false, "240": true, "360": true, "480": true,
			"720": true, "1080": true, "1440": false, "2160": false,
		}
	}
	if len(c.Live.Resolutions) == 0 {
		c.Live.Resolutions = map[string]bool{"240": true, "360": true, "480": true, "720": true, "1080": true}
	}
	if c.Transcode.AudioMergeResolution <= 0 {
		c.Transcode.AudioMergeResolution = 480
	}
	if c.Transcode.StorageRoot == "" {
		c.Transcode.StorageRoot = "/var/lib/transcode/videos"
	}
	if c.Transcode.InputDir == "" {
		c.Transcode.InputDir = "/var/lib/transcode/inputs"
	}
	if c.Transcode.StagingDir == "" {
		c.Transcode.StagingDir = "/var/lib/transcode/staging"
	}
	if c.Transcode.FFprobePath == "" {
		c.Transcode.FFprobePath = "ffprobe"
	}
	if c.Transcode.ProbeTimeout <= 0 {
		c.Transcode.ProbeTimeout = 30 * time.Second
	}
	if c.Transcode.BasePriority <= 0 {
		c.Transcode.BasePriority = 100
	}
	if c.Live.SegmentDuration <= 0 {
		c.Live.SegmentDuration = 2
	}
	if c.Live.SegmentListSize <= 0 {
		c.Live.SegmentListSize = 15
	}

	if c.ObjectStorage.KeyPrefix == "" {
		c.ObjectStorage.KeyPrefix = "videos"
	}
	if c.ObjectStorage.UploadConcurrency <= 0 {
		c.ObjectStorage.UploadConcurrency = 4
	}

	if c.Dispatch.AvailableJobsLimit <= 0 {
		c.Dispatch.AvailableJobsLimit = 10
	}
	if c.Dispatch.ContactThrottle <= 0 {
		c.Dispatch.ContactThrottle = 5 * time.Minute
	}
	if c.Dispatch.RunnerCacheSize <= 0 {
		c.Dispatch.RunnerCacheSize = 1024
	}
	if c.Dispatch.RunnerCacheTTL <= 0 {
		c.Dispatch.RunnerCacheTTL = time.Minute
	}
	if c.Dispatch.NotifyChannel == "" {
		c.Dispatch.NotifyChannel = "runner-jobs:available"
	}
	if c.Dispatch.PublicURL == "" {
		c.Dispatch.PublicURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Dispatch.PublicURL = strings.TrimRight(c.Dispatch.PublicURL, "/")
	if c.Dispatch.MaxRequestWait <= 0 {
		c.Dispatch.MaxRequestWait = 30 * time.Second
	}

	if c.Scheduler.MaxFailures <= 0 {
		c.Scheduler.MaxFailures = 5
	}
	if c.Scheduler.JobStaleTimeout <= 0 {
		c.Scheduler.JobStaleTimeout = 30 * time.Minute
	}
	if c.Scheduler.CleanupInterval <= 0 {
		c.Scheduler.CleanupInterval = 5 * time.Minute
	}
	if c.Scheduler.SweepBatchSize <= 0 {
		c.Scheduler.SweepBatchSize = 100
	}

	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "transcode-orchestrator"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.GRPCServer.Host == "" {
		c.GRPCServer.Host = "0.0.0.0"
	}
	if c.GRPCServer.Port == 0 {
		c.GRPCServer.Port = 9092
	}
	if c.ServiceRegistry.ServiceName == "" {
		c.ServiceRegistry.ServiceName = "transcode-orchestrator"
	}
	if c.ServiceRegistry.TTL == 0 {
		c.ServiceRegistry.TTL = 30 * time.Second
	}
	if c.Etcd.DialTimeout == 0 {
		c.Etcd.DialTimeout = 5 * time.Second
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		c.Kafka.BootstrapServers = []string{"localhost:29092"}
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "transcode-orchestrator"
	}
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, charset)
}

// GetRedisAddr 获取Redis地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EnabledResolutions 把配置里的字符串键解析为分辨率集合
func EnabledResolutions(m map[string]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, enabled := range m {
		var res int
		if _, err := fmt.Sscanf(strings.TrimSuffix(strings.TrimSpace(k), "p"), "%d", &res); err != nil {
			continue
		}
		out[res] = enabled
	}
	return out
}

// SetGlobalConfig 设置全局配置
func SetGlobalConfig(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig 获取全局配置
func GetGlobalConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

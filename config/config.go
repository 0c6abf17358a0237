package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config 是 Callflow 的完整配置结构
type Config struct {
	// Server 媒体与指标端口
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Call 通话轮次引擎配置（VAD、缓冲、确认超时）
	Call CallConfig `yaml:"call" env:"CALL"`

	// Speech 语音后端配置
	Speech SpeechConfig `yaml:"speech" env:"SPEECH"`

	// LLM 对话模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Journey 来电用户旅程配置
	Journey JourneyConfig `yaml:"journey" env:"JOURNEY"`

	// Redis 提示音共享缓存，可选
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database 通话记录数据库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log zap 日志
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry OpenTelemetry 导出
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig HTTP 监听与限流
type ServerConfig struct {
	// HTTP 端口（TwiML 与媒体流 WebSocket）
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Prometheus 独立端口，0 由系统分配
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 对外主机名，为空时使用请求 Host
	PublicHost string `yaml:"public_host" env:"PUBLIC_HOST"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（媒体流为长连接，不受此限制）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 停机时等待进行中通话结束的上限
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每 IP 每秒请求数
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求上限
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// CallConfig 通话轮次引擎配置
type CallConfig struct {
	// 采样率（Hz）
	SampleRate int `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 传输帧采样数（20ms = 160）
	ChunkSamples int `yaml:"chunk_samples" env:"CHUNK_SAMPLES"`
	// VAD 判定窗口采样数（30ms = 240）
	VADWindowSamples int `yaml:"vad_window_samples" env:"VAD_WINDOW_SAMPLES"`
	// VAD 激进程度 0-3
	VADMode int `yaml:"vad_mode" env:"VAD_MODE"`
	// 触发处理的最大停顿时长
	IdleTrigger time.Duration `yaml:"idle_trigger" env:"IDLE_TRIGGER"`
	// 送入语音管线的最小字节数
	MinSpeechBytes int `yaml:"min_speech_bytes" env:"MIN_SPEECH_BYTES"`
	// 是否启用降噪
	DenoiseEnabled bool `yaml:"denoise_enabled" env:"DENOISE_ENABLED"`
	// 降噪变换窗口上限
	DenoiseMaxWindow int `yaml:"denoise_max_window" env:"DENOISE_MAX_WINDOW"`
	// 降噪强度 0-1
	DenoisePropDecrease float64 `yaml:"denoise_prop_decrease" env:"DENOISE_PROP_DECREASE"`
	// 确认超时检查间隔
	AckCheckInterval time.Duration `yaml:"ack_check_interval" env:"ACK_CHECK_INTERVAL"`
	// 播放时长之外的确认宽限
	AckGrace time.Duration `yaml:"ack_grace" env:"ACK_GRACE"`
	// 等待 start 事件的超时
	StartTimeout time.Duration `yaml:"start_timeout" env:"START_TIMEOUT"`
	// 最后一句播放后挂断前的等待
	HangupDelay time.Duration `yaml:"hangup_delay" env:"HANGUP_DELAY"`
}

// SpeechConfig 语音后端（Sarvam）配置
type SpeechConfig struct {
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 无法识别语言时的默认语言
	DefaultLanguage string `yaml:"default_language" env:"DEFAULT_LANGUAGE"`
	// TTS 发音人
	Speaker string `yaml:"speaker" env:"SPEAKER"`
	// TTS 模型
	TTSModel string `yaml:"tts_model" env:"TTS_MODEL"`
	// 翻译模型
	TranslateModel string `yaml:"translate_model" env:"TRANSLATE_MODEL"`
	// TTS 文本分块长度
	ChunkLength int `yaml:"chunk_length" env:"CHUNK_LENGTH"`
	// TTS 最大分块数
	MaxChunks int `yaml:"max_chunks" env:"MAX_CHUNKS"`
	// 提示音进程内缓存容量
	PromptCacheSize int `yaml:"prompt_cache_size" env:"PROMPT_CACHE_SIZE"`
	// 提示音 Redis 缓存 TTL
	PromptCacheTTL time.Duration `yaml:"prompt_cache_ttl" env:"PROMPT_CACHE_TTL"`
	// 熔断阈值
	BreakerThreshold int `yaml:"breaker_threshold" env:"BREAKER_THRESHOLD"`
	// 熔断恢复时间
	BreakerResetTimeout time.Duration `yaml:"breaker_reset_timeout" env:"BREAKER_RESET_TIMEOUT"`
}

// LLMConfig 对话模型配置（OpenAI 兼容接口）
type LLMConfig struct {
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 对话历史 Token 上限
	MaxHistoryTokens int `yaml:"max_history_tokens" env:"MAX_HISTORY_TOKENS"`
}

// JourneyConfig 来电用户旅程配置
type JourneyConfig struct {
	// 默认阶段: data_pending, profile_pending, advice_pending, advice_exists
	DefaultStage string `yaml:"default_stage" env:"DEFAULT_STAGE"`
	// 按号码覆盖阶段，环境变量写作 号码=阶段,号码=阶段
	Stages map[string]string `yaml:"stages" env:"STAGES"`
	// 问卷文件路径（YAML 或 JSON）
	QuestionnairePath string `yaml:"questionnaire_path" env:"QUESTIONNAIRE_PATH"`
	// 顾问建议上下文目录，文件名为 {caller}.md
	ContextDir string `yaml:"context_dir" env:"CONTEXT_DIR"`
	// 提示语言
	PromptLanguage string `yaml:"prompt_language" env:"PROMPT_LANGUAGE"`
}

// RedisConfig Redis 连接
type RedisConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 逻辑库编号
	DB           int `yaml:"db" env:"DB"`
	PoolSize     int `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 启用 TLS
	TLS bool `yaml:"tls" env:"TLS"`
}

// DatabaseConfig 通话记录库
type DatabaseConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// postgres、mysql 或 sqlite；sqlite 时 Name 即文件路径
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Name string `yaml:"name" env:"NAME"`
	// 仅 postgres 使用
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	// 启动时执行 schema 迁移
	AutoMigrate bool `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// LogConfig 日志输出
type LogConfig struct {
	// debug、info、warn、error
	Level string `yaml:"level" env:"LEVEL"`
	// json 或 console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths  []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// Error 级以上附带堆栈
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig OTLP gRPC 导出，默认关闭
type TelemetryConfig struct {
	// 是否启用
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DSN 返回数据库连接字符串，Postgres 使用 URL 形式以便转义密码中的特殊字符
func (d *DatabaseConfig) DSN() string {
	addr := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	switch d.Driver {
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(d.User, d.Password),
			Host:   addr,
			Path:   "/" + d.Name,
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
		}
		return u.String()
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", d.User, d.Password, addr, d.Name)
	case "sqlite":
		return d.Name
	}
	return ""
}

package config

import "time"

// =============================================================================
// 📦 默认值
// =============================================================================

// 电话媒体流参数：8kHz 单声道 μ-law，每个 20ms 媒体帧 160 个采样
const (
	TelephonySampleRate   = 8000
	TelephonyFrameSamples = TelephonySampleRate / 50
	// VAD 窗口 30ms
	TelephonyVADSamples = TelephonySampleRate * 30 / 1000
)

// DefaultConfig 返回全部默认值。
// Redis、数据库与遥测默认关闭，单进程即可接听电话。
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Call:     DefaultCallConfig(),
		Speech:   DefaultSpeechConfig(),
		Journey:  DefaultJourneyConfig(),
		Database: DefaultDatabaseConfig(),
		LLM: LLMConfig{
			BaseURL:          "https://api.openai.com/v1",
			Model:            "gpt-4o-mini",
			Timeout:          30 * time.Second,
			MaxRetries:       3,
			MaxHistoryTokens: 6000,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			OutputPaths:  []string{"stdout"},
			EnableCaller: true,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "callflow",
			SampleRate:   0.1,
		},
	}
}

// DefaultServerConfig 媒体端口 5050，指标端口 9091
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        5050,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultCallConfig 轮次检测与播放确认参数
func DefaultCallConfig() CallConfig {
	return CallConfig{
		SampleRate:       TelephonySampleRate,
		ChunkSamples:     TelephonyFrameSamples,
		VADWindowSamples: TelephonyVADSamples,
		VADMode:          3,
		// 连续静音超过 500ms 视为一句话结束
		IdleTrigger:         500 * time.Millisecond,
		MinSpeechBytes:      1000,
		DenoiseEnabled:      true,
		DenoiseMaxWindow:    256,
		DenoisePropDecrease: 0.8,
		AckCheckInterval:    100 * time.Millisecond,
		AckGrace:            3 * time.Second,
		StartTimeout:        10 * time.Second,
		HangupDelay:         5 * time.Second,
	}
}

// DefaultSpeechConfig Sarvam 语音后端，默认印地语
func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		BaseURL:             "https://api.sarvam.ai/",
		Timeout:             30 * time.Second,
		MaxRetries:          3,
		DefaultLanguage:     "hi-IN",
		Speaker:             "meera",
		TTSModel:            "bulbul:v1",
		TranslateModel:      "mayura:v1",
		ChunkLength:         450,
		MaxChunks:           3,
		PromptCacheSize:     10,
		PromptCacheTTL:      24 * time.Hour,
		BreakerThreshold:    5,
		BreakerResetTimeout: 30 * time.Second,
	}
}

// DefaultJourneyConfig 未知来电方从 profile_pending 阶段开始
func DefaultJourneyConfig() JourneyConfig {
	return JourneyConfig{
		DefaultStage:   "profile_pending",
		Stages:         map[string]string{},
		PromptLanguage: "hi-IN",
	}
}

// DefaultDatabaseConfig 通话记录库，启用后默认自动迁移
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "callflow",
		Name:            "callflow",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		AutoMigrate:     true,
	}
}

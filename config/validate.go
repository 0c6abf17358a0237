package config

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// FieldError 单个配置项的校验错误
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// journeyStages 与 journey 包的阶段名一致
var journeyStages = map[string]bool{
	"data_pending":    true,
	"profile_pending": true,
	"advice_pending":  true,
	"advice_exists":   true,
}

// Validate 校验配置，返回全部错误的合并结果，可用 errors.As 取出 *FieldError
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, field, reason string) {
		if bad {
			errs = append(errs, &FieldError{Field: field, Reason: reason})
		}
	}

	check(c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535, "server.http_port", "must be in 1..65535")
	check(c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535, "server.metrics_port", "must be in 0..65535")

	call := c.Call
	check(call.SampleRate <= 0, "call.sample_rate", "must be positive")
	check(call.ChunkSamples <= 0, "call.chunk_samples", "must be positive")
	check(call.VADWindowSamples <= 0, "call.vad_window_samples", "must be positive")
	check(call.VADMode < 0 || call.VADMode > 3, "call.vad_mode", "must be between 0 and 3")
	if call.SampleRate > 0 && call.ChunkSamples > 0 {
		chunk := time.Duration(call.ChunkSamples) * time.Second / time.Duration(call.SampleRate)
		check(call.IdleTrigger < chunk, "call.idle_trigger", fmt.Sprintf("must cover at least one chunk (%s)", chunk))
	}
	check(call.MinSpeechBytes < 0, "call.min_speech_bytes", "must not be negative")
	check(call.DenoisePropDecrease < 0 || call.DenoisePropDecrease > 1, "call.denoise_prop_decrease", "must be between 0 and 1")
	check(call.AckCheckInterval <= 0, "call.ack_check_interval", "must be positive")

	check(c.Speech.DefaultLanguage == "", "speech.default_language", "is required")
	check(c.Speech.ChunkLength <= 0, "speech.chunk_length", "must be positive")
	check(c.Speech.MaxChunks <= 0, "speech.max_chunks", "must be positive")

	check(c.LLM.Temperature < 0 || c.LLM.Temperature > 2, "llm.temperature", "must be between 0 and 2")

	check(!journeyStages[c.Journey.DefaultStage], "journey.default_stage", fmt.Sprintf("unknown stage %q", c.Journey.DefaultStage))
	numbers := make([]string, 0, len(c.Journey.Stages))
	for n := range c.Journey.Stages {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	for _, n := range numbers {
		stage := c.Journey.Stages[n]
		check(!journeyStages[stage], "journey.stages["+n+"]", fmt.Sprintf("unknown stage %q", stage))
	}

	if c.Database.Enabled {
		switch c.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			check(true, "database.driver", fmt.Sprintf("unsupported driver %q", c.Database.Driver))
		}
	}
	return errors.Join(errs...)
}

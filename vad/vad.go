package vad

import (
	"fmt"
	"time"

	"github.com/BaSui01/callflow/audio"
)

// State 单帧判定结果
type State int

const (
	NotSpeaking State = iota
	Speaking
	IdleTriggered
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case Speaking:
		return "speaking"
	case NotSpeaking:
		return "not_speaking"
	case IdleTriggered:
		return "idle_triggered"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Classifier 二元语音/非语音分类器
type Classifier interface {
	IsSpeech(window []int16, sampleRate int) bool
}

// ClassifierFunc 函数适配器
type ClassifierFunc func(window []int16, sampleRate int) bool

// IsSpeech 实现 Classifier
func (f ClassifierFunc) IsSpeech(window []int16, sampleRate int) bool {
	return f(window, sampleRate)
}

// Config 检测器配置
type Config struct {
	SampleRate    int           `yaml:"sample_rate" json:"sample_rate"`
	ChunkSamples  int           `yaml:"chunk_samples" json:"chunk_samples"`
	WindowSamples int           `yaml:"window_samples" json:"window_samples"`
	IdleTrigger   time.Duration `yaml:"idle_trigger" json:"idle_trigger"`
}

// DefaultConfig 8kHz / 20ms 帧 / 30ms 窗口 / 0.5s 停顿
func DefaultConfig() Config {
	return Config{
		SampleRate:    audio.SampleRate,
		ChunkSamples:  audio.ChunkSamples,
		WindowSamples: audio.SampleRate * 30 / 1000,
		IdleTrigger:   500 * time.Millisecond,
	}
}

// IdleCut 触发所需的连续静音帧数，至少为 1
func (c Config) IdleCut() int {
	if c.SampleRate <= 0 || c.ChunkSamples <= 0 {
		return 1
	}
	cut := int(int64(c.IdleTrigger) * int64(c.SampleRate) / (int64(c.ChunkSamples) * int64(time.Second)))
	if cut < 1 {
		return 1
	}
	return cut
}

// Detector 单会话 VAD 状态机，非并发安全，仅由入站循环使用
type Detector struct {
	classifier Classifier
	sampleRate int
	window     int
	idleCut    int
	idle       int
}

// NewDetector 创建检测器
func NewDetector(cfg Config, classifier Classifier) *Detector {
	if cfg.WindowSamples <= 0 {
		cfg.WindowSamples = DefaultConfig().WindowSamples
	}
	return NewDetectorWithCut(cfg, classifier, cfg.IdleCut())
}

// NewDetectorWithCut 使用显式 IdleCut 创建检测器
func NewDetectorWithCut(cfg Config, classifier Classifier, idleCut int) *Detector {
	if idleCut < 1 {
		idleCut = 1
	}
	return &Detector{
		classifier: classifier,
		sampleRate: cfg.SampleRate,
		window:     cfg.WindowSamples,
		idleCut:    idleCut,
	}
}

// Detect 判定一帧 PCM
func (d *Detector) Detect(frame audio.PCM) (State, error) {
	samples, err := audio.SamplesFromPCM(frame)
	if err != nil {
		return NotSpeaking, err
	}
	window := audio.TrailingWindow(samples, d.window)
	return d.Step(d.classifier.IsSpeech(window, d.sampleRate)), nil
}

// Step 按一次分类结果推进状态机
func (d *Detector) Step(speech bool) State {
	if speech {
		d.idle = 0
		return Speaking
	}
	d.idle++
	if d.idle >= d.idleCut {
		d.idle = 0
		return IdleTriggered
	}
	return NotSpeaking
}

// Counter 当前连续静音帧计数
func (d *Detector) Counter() int {
	return d.idle
}

// IdleCut 触发阈值
func (d *Detector) IdleCut() int {
	return d.idleCut
}

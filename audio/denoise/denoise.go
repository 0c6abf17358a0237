package denoise

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/internal/pool"
)

var (
	// ErrFrameTooShort 帧采样数少于最小变换窗口
	ErrFrameTooShort = errors.New("denoise: frame shorter than minimum transform window")
	// ErrNonFinite 变换结果出现 NaN/Inf
	ErrNonFinite = errors.New("denoise: non-finite output")
)

// Conditioner 单帧 PCM 降噪
type Conditioner interface {
	Condition(pcm audio.PCM) (audio.PCM, error)
}

// Config 频谱门限降噪配置
type Config struct {
	// 变换窗口上限
	MaxWindow int `yaml:"max_window" json:"max_window"`
	// 最小变换窗口，短于此的帧视为失败
	MinWindow int `yaml:"min_window" json:"min_window"`
	// 噪声频点衰减比例 0-1
	PropDecrease float64 `yaml:"prop_decrease" json:"prop_decrease"`
	// 门限 = 均值 + NStdThresh * 标准差（dB）
	NStdThresh float64 `yaml:"n_std_thresh" json:"n_std_thresh"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxWindow:    256,
		MinWindow:    16,
		PropDecrease: 0.8,
		NStdThresh:   1.5,
	}
}

// SpectralGate 平稳噪声频谱门限
type SpectralGate struct {
	cfg   Config
	plans *pool.KeyedPool[int, *stft]
}

// NewSpectralGate 创建频谱门限降噪器，可被多个会话共享
func NewSpectralGate(cfg Config) *SpectralGate {
	def := DefaultConfig()
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = def.MaxWindow
	}
	if cfg.MinWindow <= 0 {
		cfg.MinWindow = def.MinWindow
	}
	if cfg.MinWindow > cfg.MaxWindow {
		cfg.MinWindow = cfg.MaxWindow
	}
	if cfg.NStdThresh <= 0 {
		cfg.NStdThresh = def.NStdThresh
	}
	cfg.PropDecrease = math.Max(0, math.Min(1, cfg.PropDecrease))

	return &SpectralGate{
		cfg:   cfg,
		plans: pool.NewKeyedPool(newSTFT, nil),
	}
}

// WindowFor 返回给定采样数使用的变换窗口
func (g *SpectralGate) WindowFor(samples int) int {
	if samples < g.cfg.MaxWindow {
		return samples
	}
	return g.cfg.MaxWindow
}

// Condition 对单帧做频谱门限降噪
func (g *SpectralGate) Condition(pcm audio.PCM) (audio.PCM, error) {
	samples, err := audio.SamplesFromPCM(pcm)
	if err != nil {
		return nil, err
	}
	if len(samples) < g.cfg.MinWindow {
		return nil, fmt.Errorf("%w: %d < %d samples", ErrFrameTooShort, len(samples), g.cfg.MinWindow)
	}

	n := g.WindowFor(len(samples))
	plan := g.plans.Get(n)
	defer g.plans.Put(n, plan)

	out, err := plan.gate(samples, g.cfg.PropDecrease, g.cfg.NStdThresh)
	if err != nil {
		return nil, err
	}
	return audio.PCMFromSamples(out), nil
}

// stft 固定窗口长度的变换计划，非并发安全，经由池复用
type stft struct {
	n      int
	hop    int
	fft    *fourier.FFT
	window []float64
	frame  []float64
}

func newSTFT(n int) *stft {
	hop := n / 4
	if hop < 1 {
		hop = 1
	}
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return &stft{
		n:      n,
		hop:    hop,
		fft:    fourier.NewFFT(n),
		window: w,
		frame:  make([]float64, n),
	}
}

func (s *stft) gate(samples []int16, propDecrease, nStd float64) ([]int16, error) {
	pad := s.n / 2
	padded := make([]float64, len(samples)+2*pad)
	for i, v := range samples {
		padded[pad+i] = float64(v)
	}

	frames := 1 + (len(padded)-s.n)/s.hop
	bins := s.n/2 + 1
	spectra := make([][]complex128, frames)
	db := make([][]float64, frames)

	for f := 0; f < frames; f++ {
		start := f * s.hop
		for i := 0; i < s.n; i++ {
			s.frame[i] = padded[start+i] * s.window[i]
		}
		spectra[f] = s.fft.Coefficients(nil, s.frame)
		db[f] = make([]float64, bins)
		for k, c := range spectra[f] {
			db[f][k] = 20 * math.Log10(cmplx.Abs(c)+1e-10)
		}
	}

	// 每个频点的噪声门限
	thresh := make([]float64, bins)
	for k := 0; k < bins; k++ {
		var sum, sq float64
		for f := 0; f < frames; f++ {
			sum += db[f][k]
		}
		mean := sum / float64(frames)
		for f := 0; f < frames; f++ {
			d := db[f][k] - mean
			sq += d * d
		}
		thresh[k] = mean + nStd*math.Sqrt(sq/float64(frames))
	}

	out := make([]float64, len(padded))
	norm := make([]float64, len(padded))
	seq := make([]float64, s.n)
	for f := 0; f < frames; f++ {
		for k := range spectra[f] {
			if db[f][k] <= thresh[k] {
				spectra[f][k] *= complex(1-propDecrease, 0)
			}
		}
		s.fft.Sequence(seq, spectra[f])
		start := f * s.hop
		for i := 0; i < s.n; i++ {
			out[start+i] += seq[i] / float64(s.n) * s.window[i]
			norm[start+i] += s.window[i] * s.window[i]
		}
	}

	result := make([]int16, len(samples))
	for i := range result {
		j := pad + i
		v := out[j]
		if norm[j] > 1e-8 {
			v /= norm[j]
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrNonFinite
		}
		result[i] = clamp16(v)
	}
	return result, nil
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// =============================================================================
// 🛡️ 尽力而为包装
// =============================================================================

// Safe 包装 Conditioner，失败时返回原始帧
type Safe struct {
	inner  Conditioner
	logger *zap.Logger
	onFail func(error)
}

// NewSafe 创建尽力而为降噪器，onFail 可为 nil
func NewSafe(inner Conditioner, logger *zap.Logger, onFail func(error)) *Safe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Safe{inner: inner, logger: logger, onFail: onFail}
}

// Apply 执行降噪，永不失败
func (s *Safe) Apply(pcm audio.PCM) (out audio.PCM) {
	out = pcm
	defer func() {
		if r := recover(); r != nil {
			s.fail(fmt.Errorf("conditioner panicked: %v", r))
			out = pcm
		}
	}()

	if s.inner == nil {
		return pcm
	}
	cleaned, err := s.inner.Condition(pcm)
	if err != nil {
		s.fail(err)
		return pcm
	}
	if len(cleaned) != len(pcm) {
		s.fail(fmt.Errorf("conditioner changed frame length %d -> %d", len(pcm), len(cleaned)))
		return pcm
	}
	return cleaned
}

func (s *Safe) fail(err error) {
	s.logger.Warn("could not reduce noise from frame", zap.Error(err))
	if s.onFail != nil {
		s.onFail(err)
	}
}

// Passthrough 不做处理的 Conditioner
type Passthrough struct{}

// Condition 原样返回
func (Passthrough) Condition(pcm audio.PCM) (audio.PCM, error) { return pcm, nil }

package vad

import "math"

// modeThresholds 各激进程度的 RMS 门限（int16 量纲），越大越难判为语音
var modeThresholds = [4]float64{150, 250, 400, 600}

// EnergyClassifier 基于 RMS 能量与过零率的语音分类器
type EnergyClassifier struct {
	threshold float64
	// 过零率上限，超过视为宽带噪声
	maxZCR float64
}

// NewEnergyClassifier 按激进程度 0-3 创建分类器
func NewEnergyClassifier(mode int) *EnergyClassifier {
	if mode < 0 {
		mode = 0
	}
	if mode > 3 {
		mode = 3
	}
	return &EnergyClassifier{
		threshold: modeThresholds[mode],
		maxZCR:    0.5 - 0.05*float64(mode),
	}
}

// NewEnergyClassifierWithThreshold 使用显式门限
func NewEnergyClassifierWithThreshold(threshold float64) *EnergyClassifier {
	return &EnergyClassifier{threshold: threshold, maxZCR: 0.5}
}

// IsSpeech 实现 Classifier
func (c *EnergyClassifier) IsSpeech(window []int16, sampleRate int) bool {
	if len(window) == 0 {
		return false
	}
	if RMS(window) <= c.threshold {
		return false
	}
	return ZeroCrossingRate(window) <= c.maxZCR
}

// Threshold 当前 RMS 门限
func (c *EnergyClassifier) Threshold() float64 {
	return c.threshold
}

// RMS 计算均方根能量
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ZeroCrossingRate 过零率 0-1
func ZeroCrossingRate(samples []int16) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

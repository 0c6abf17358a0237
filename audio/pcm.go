package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

// 电话媒体流固定格式
const (
	SampleRate     = 8000
	Channels       = 1
	BytesPerSample = 2
	// ChunkSamples 传输帧采样数（20ms）
	ChunkSamples = 160
)

var (
	// ErrOddLength PCM 字节数不是完整采样
	ErrOddLength = errors.New("audio: pcm length is not a whole number of samples")
	// ErrMalformedPayload 媒体负载不是合法 base64
	ErrMalformedPayload = errors.New("audio: malformed media payload")
)

// PCM 16 位小端单声道线性音频
type PCM []byte

// Samples 返回采样数
func (p PCM) Samples() int {
	return len(p) / BytesPerSample
}

// Duration 返回给定采样率下的播放时长
func (p PCM) Duration(rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(p.Samples()) * time.Second / time.Duration(rate)
}

// SamplesFromPCM 解析为 int16 采样
func SamplesFromPCM(p PCM) ([]int16, error) {
	if len(p)%BytesPerSample != 0 {
		return nil, ErrOddLength
	}
	out := make([]int16, len(p)/BytesPerSample)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(p[i*2:]))
	}
	return out, nil
}

// PCMFromSamples 将 int16 采样编码为 PCM
func PCMFromSamples(samples []int16) PCM {
	out := make(PCM, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// TrailingWindow 截取最后 n 个采样，不足时在末尾补零
func TrailingWindow(samples []int16, n int) []int16 {
	if n <= 0 {
		return nil
	}
	if len(samples) >= n {
		out := make([]int16, n)
		copy(out, samples[len(samples)-n:])
		return out
	}
	out := make([]int16, n)
	copy(out, samples)
	return out
}

// Join 拼接多个 PCM 帧
func Join(frames []PCM) PCM {
	total := 0
	for _, f := range frames {
		total += len(f)
	}
	out := make(PCM, 0, total)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

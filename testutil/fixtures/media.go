// Package fixtures 提供媒体流测试样例。
package fixtures

import (
	"math"
	"strconv"

	"github.com/BaSui01/callflow/audio"
	"github.com/BaSui01/callflow/transport"
)

// SampleRate 电话媒体流采样率
const SampleRate = 8000

// Tone 生成 440Hz 正弦波 PCM，能被 VAD 判定为语音
func Tone(samples int, amplitude int16) audio.PCM {
	out := make([]int16, samples)
	for i := range out {
		out[i] = int16(float64(amplitude) * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return audio.PCMFromSamples(out)
}

// Silence 生成全零 PCM
func Silence(samples int) audio.PCM {
	return make(audio.PCM, samples*2)
}

// StartEvent 构造 start 事件
func StartEvent(streamSID string) transport.Event {
	return transport.Event{
		Event:     transport.EventStart,
		StreamSID: streamSID,
		Start: &transport.StartPayload{
			StreamSID:   streamSID,
			CallSID:     "CA" + streamSID,
			Tracks:      []string{"inbound"},
			MediaFormat: &transport.MediaFormat{Encoding: "audio/x-mulaw", SampleRate: SampleRate, Channels: 1},
		},
	}
}

// StopEvent 构造 stop 事件
func StopEvent(streamSID string) transport.Event {
	return transport.Event{
		Event:     transport.EventStop,
		StreamSID: streamSID,
		Stop:      &transport.StopPayload{CallSID: "CA" + streamSID},
	}
}

// MarkEvent 构造远端回传的 mark 事件
func MarkEvent(streamSID, name string) transport.Event {
	return transport.MarkMessage(streamSID, name)
}

// MediaFrames 把 PCM 切成每帧 frameSamples 个样本的入站 media 事件
func MediaFrames(streamSID string, pcm audio.PCM, frameSamples int) []transport.Event {
	step := frameSamples * 2
	var out []transport.Event
	for off, n := 0, 1; off < len(pcm); off, n = off+step, n+1 {
		end := min(off+step, len(pcm))
		payload, err := audio.EncodePayload(pcm[off:end])
		if err != nil {
			panic(err)
		}
		ev := transport.MediaMessage(streamSID, payload)
		ev.Media.Track = "inbound"
		ev.Media.Chunk = strconv.Itoa(n)
		out = append(out, ev)
	}
	return out
}

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidWAV 表示无法解析的 WAV 数据
var ErrInvalidWAV = errors.New("audio: invalid wav")

const wavHeaderSize = 44

// EncodeWAV 为 16 bit PCM 加上 RIFF/WAVE 头
func EncodeWAV(pcm PCM, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	dataLen := len(pcm)
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	out := make([]byte, wavHeaderSize, wavHeaderSize+dataLen)
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(dataLen))
	return append(out, pcm...)
}

// WAVFormat 描述 fmt 块
type WAVFormat struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// DecodeWAV 解析 RIFF 块，返回 data 块中的 PCM。
// 只接受 16 bit 线性 PCM。
func DecodeWAV(data []byte) (PCM, WAVFormat, error) {
	var format WAVFormat
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, format, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidWAV)
	}

	seenFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) {
			// 流式 TTS 的 data 块长度可能写成 0xFFFFFFFF
			if id == "data" {
				end = len(data)
			} else {
				return nil, format, fmt.Errorf("%w: chunk %q overruns buffer", ErrInvalidWAV, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, format, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			format = WAVFormat{
				AudioFormat:   binary.LittleEndian.Uint16(data[body : body+2]),
				Channels:      int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate:    int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			seenFmt = true
		case "data":
			if !seenFmt {
				return nil, format, fmt.Errorf("%w: data before fmt", ErrInvalidWAV)
			}
			if format.AudioFormat != 1 || format.BitsPerSample != 16 {
				return nil, format, fmt.Errorf("%w: unsupported format %d/%d bit",
					ErrInvalidWAV, format.AudioFormat, format.BitsPerSample)
			}
			pcm := make(PCM, end-body)
			copy(pcm, data[body:end])
			if len(pcm)%2 != 0 {
				pcm = pcm[:len(pcm)-1]
			}
			return pcm, format, nil
		}

		// 块按偶数字节对齐
		pos = end + size%2
	}
	return nil, format, fmt.Errorf("%w: no data chunk", ErrInvalidWAV)
}

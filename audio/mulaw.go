package audio

import (
	"encoding/base64"
	"fmt"
)

const (
	ulawBias = 0x84
	ulawClip = 32635

	ulawPositiveZero = 0xFF
	ulawNegativeZero = 0x7F
)

var ulawDecodeTable [256]int16

func init() {
	for i := range ulawDecodeTable {
		ulawDecodeTable[i] = ulawToLinear(byte(i))
	}
}

// ulawToLinear G.711 μ-law 解码
func ulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + ulawBias
	value <<= uint(exp)
	value -= ulawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// linearToULaw G.711 μ-law 编码
func linearToULaw(sample int16) byte {
	s := int(sample)
	var sign byte
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias

	exp := 7
	for mask := 0x4000; s&mask == 0 && exp > 0; mask >>= 1 {
		exp--
	}
	mant := (s >> (uint(exp) + 3)) & 0x0F
	u := ^(sign | byte(exp)<<4 | byte(mant))
	// 负零与正零解码相同，统一输出正零
	if u == ulawNegativeZero {
		return ulawPositiveZero
	}
	return u
}

// DecodeULaw μ-law 字节解码为 PCM，每个字节对应一个采样
func DecodeULaw(ulaw []byte) PCM {
	out := make(PCM, len(ulaw)*BytesPerSample)
	for i, b := range ulaw {
		s := uint16(ulawDecodeTable[b])
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// EncodeULaw PCM 编码为 μ-law
func EncodeULaw(pcm PCM) ([]byte, error) {
	if len(pcm)%BytesPerSample != 0 {
		return nil, ErrOddLength
	}
	out := make([]byte, len(pcm)/BytesPerSample)
	for i := range out {
		s := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		out[i] = linearToULaw(s)
	}
	return out, nil
}

// DecodePayload 解码 base64 媒体负载为 PCM
func DecodePayload(payload string) (PCM, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return DecodeULaw(raw), nil
}

// EncodePayload 将 PCM 编码为 base64 媒体负载
func EncodePayload(pcm PCM) (string, error) {
	ulaw, err := EncodeULaw(pcm)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ulaw), nil
}

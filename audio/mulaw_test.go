package audio

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestULaw_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		ulaw byte
		want int16
	}{
		{"positive zero", 0xFF, 0},
		{"negative zero", 0x7F, 0},
		{"positive max", 0x80, 32124},
		{"negative max", 0x00, -32124},
		{"small positive", 0xFE, 8},
		{"small negative", 0x7E, -8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := DecodeULaw([]byte{tt.ulaw})
			samples, err := SamplesFromPCM(pcm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, samples[0])
		})
	}
}

func TestEncodeULaw_Clipping(t *testing.T) {
	out, err := EncodeULaw(PCMFromSamples([]int16{32767, -32768}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x80, 0x00}, out)
}

func TestEncodeULaw_OddLength(t *testing.T) {
	_, err := EncodeULaw(PCM{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrOddLength)
}

func TestEncodeULaw_SmallNegativesUsePositiveZero(t *testing.T) {
	out, err := EncodeULaw(PCMFromSamples([]int16{-1, -2, -3, 0, 1}))
	require.NoError(t, err)
	for i, b := range out {
		assert.Equal(t, byte(0xFF), b, "sample %d", i)
	}

	again, err := EncodeULaw(DecodeULaw(out))
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestEncodeULaw_NeverEmitsNegativeZero(t *testing.T) {
	for x := -32768; x <= 32767; x++ {
		out, err := EncodeULaw(PCMFromSamples([]int16{int16(x)}))
		require.NoError(t, err)
		if out[0] == 0x7F {
			t.Fatalf("sample %d encoded to 0x7F", x)
		}
	}
}

func TestULaw_ByteRoundTrip(t *testing.T) {
	for b := 0; b < 256; b++ {
		if b == 0x7F {
			// 负零与正零解码相同，编码回正零
			continue
		}
		out, err := EncodeULaw(DecodeULaw([]byte{byte(b)}))
		require.NoError(t, err)
		assert.Equal(t, byte(b), out[0], "byte 0x%02x", b)
	}
}

func TestULaw_PCMRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		// 量化网格上的帧：由解码产生
		ulaw := rapid.SliceOfN(rapid.Byte(), 0, 320).Draw(rt, "ulaw")
		frame := DecodeULaw(ulaw)

		encoded, err := EncodeULaw(frame)
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		if got := DecodeULaw(encoded); string(got) != string(frame) {
			rt.Fatalf("decode(encode(frame)) != frame")
		}
	})
}

func TestULaw_EncodeIsProjection_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		samples := rapid.SliceOfN(rapid.Int16(), 1, 160).Draw(rt, "samples")

		once, err := EncodeULaw(PCMFromSamples(samples))
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		twice, err := EncodeULaw(DecodeULaw(once))
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		if string(once) != string(twice) {
			rt.Fatalf("re-encoding a quantized frame changed it")
		}
	})
}

func TestULaw_QuantizationKeepsSign_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		x := rapid.Int16Range(-32000, 32000).Draw(rt, "x")
		enc, _ := EncodeULaw(PCMFromSamples([]int16{x}))
		dec, _ := SamplesFromPCM(DecodeULaw(enc))
		if x > 8 && dec[0] <= 0 || x < -8 && dec[0] >= 0 {
			rt.Fatalf("sign flipped: %d -> %d", x, dec[0])
		}
	})
}

func TestPayload_RoundTrip(t *testing.T) {
	ulaw := []byte{0xFF, 0x80, 0x00, 0x7E, 0x12}
	payload := base64.StdEncoding.EncodeToString(ulaw)

	pcm, err := DecodePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, len(ulaw)*BytesPerSample, len(pcm))

	back, err := EncodePayload(pcm)
	require.NoError(t, err)
	assert.Equal(t, payload, back)
}

func TestDecodePayload_Malformed(t *testing.T) {
	_, err := DecodePayload("***not base64***")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

package audio

import (
	"encoding/base64"
	"encoding/binary"
	"time"
)

// InputSampleRate is the capture rate: 16kHz mono PCM16LE.
const InputSampleRate = 16000

// OutputSampleRate is the rate of inbound agent audio: 24kHz mono PCM16LE.
const OutputSampleRate = 24000

// MimePCM16k tags outbound capture frames for the remote session.
const MimePCM16k = "audio/pcm;rate=16000"

// float32ToPCM16LE clamps float samples to [-1, 1], scales to the signed
// 16-bit range and packs little-endian.
func float32ToPCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		v := int16(f * 32767)
		binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(v))
	}
	return out
}

// Int16ToPCM16LE packs int16 samples little-endian.
func Int16ToPCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[i*2:(i+1)*2], uint16(v))
	}
	return out
}

// PCM16LEToInt16 unpacks little-endian PCM16 bytes. A trailing odd byte is
// dropped.
func PCM16LEToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return out
}

// EncodeBase64 converts raw PCM bytes to the transport-safe text encoding.
func EncodeBase64(pcm []byte) string { return base64.StdEncoding.EncodeToString(pcm) }

// DecodeBase64 converts transport text back to raw PCM bytes.
func DecodeBase64(data string) ([]byte, error) { return base64.StdEncoding.DecodeString(data) }

// PCMDuration returns the play time of a PCM16 mono buffer at the given rate.
func PCMDuration(byteLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := byteLen / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

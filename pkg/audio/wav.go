package audio

import (
	"bytes"
	"encoding/binary"
)

// EncodeWAV wraps 16-bit little-endian PCM samples in a RIFF/WAVE container.
func EncodeWAV(pcm []int16, sampleRate, channels int) []byte {
	dataLen := len(pcm) * 2
	blockAlign := channels * 2

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	binary.Write(buf, binary.LittleEndian, pcm)
	return buf.Bytes()
}

// decimate reduces the sample rate by factor using a box filter over each
// group of input samples. A trailing partial group is averaged as well.
func decimate(in []int16, factor int) []int16 {
	if factor <= 1 {
		return append([]int16(nil), in...)
	}
	out := make([]int16, 0, (len(in)+factor-1)/factor)
	for i := 0; i < len(in); i += factor {
		end := min(i+factor, len(in))
		sum := 0
		for _, s := range in[i:end] {
			sum += int(s)
		}
		out = append(out, int16(sum/(end-i)))
	}
	return out
}

package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/opus"

	"github.com/aiml096/farmer-bot/pkg/logger"
)

// ErrUndecodable is returned when the input cannot be turned into PCM.
var ErrUndecodable = errors.New("audio: undecodable input")

const (
	opusRate       = 48000
	opusMaxFrameMs = 120
	defaultRate    = 16000
)

// OpusTranscoder converts Ogg/Opus voice notes into mono 16-bit WAV.
type OpusTranscoder struct {
	SampleRate int
}

func NewOpusTranscoder() *OpusTranscoder {
	return &OpusTranscoder{SampleRate: defaultRate}
}

type opusHead struct {
	channels int
	preSkip  int
}

// Transcode decodes an Ogg/Opus clip and returns WAV bytes at SampleRate.
func (t *OpusTranscoder) Transcode(ctx context.Context, data []byte) ([]byte, error) {
	rate := t.SampleRate
	if rate <= 0 {
		rate = defaultRate
	}
	if opusRate%rate != 0 {
		return nil, fmt.Errorf("unsupported target sample rate %d", rate)
	}

	reader := newOggReader(bytes.NewReader(data))

	first, err := reader.NextPacket()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	head, err := parseOpusHead(first)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	decoder, err := opus.NewDecoderWithOutput(opusRate, 1)
	if err != nil {
		return nil, err
	}
	frame := make([]int16, opusRate*opusMaxFrameMs/1000)
	var pcm []int16
	packets := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pkt, err := reader.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
		}
		if bytes.HasPrefix(pkt, []byte("OpusTags")) || len(pkt) == 0 {
			continue
		}

		if _, err := packetSamples(pkt); err != nil {
			return nil, fmt.Errorf("%w: packet %d: %v", ErrUndecodable, packets, err)
		}
		n, err := decoder.DecodeToInt16(pkt, frame)
		if err != nil {
			return nil, fmt.Errorf("%w: packet %d: %v", ErrUndecodable, packets, err)
		}
		pcm = append(pcm, frame[:min(n, len(frame))]...)
		packets++
	}

	if packets == 0 {
		return nil, fmt.Errorf("%w: no audio packets", ErrUndecodable)
	}
	if head.preSkip < len(pcm) {
		pcm = pcm[head.preSkip:]
	}

	out := decimate(pcm, opusRate/rate)
	logger.DebugCF("audio", "Voice clip transcoded", map[string]any{
		"packets":     packets,
		"channels":    head.channels,
		"duration_ms": (time.Duration(len(out)) * time.Second / time.Duration(rate)).Milliseconds(),
		"sample_rate": rate,
	})
	return EncodeWAV(out, rate, 1), nil
}

func parseOpusHead(pkt []byte) (opusHead, error) {
	if len(pkt) < 19 || !bytes.HasPrefix(pkt, []byte("OpusHead")) {
		return opusHead{}, errors.New("missing OpusHead")
	}
	return opusHead{
		channels: int(pkt[9]),
		preSkip:  int(binary.LittleEndian.Uint16(pkt[10:12])),
	}, nil
}

// packetSamples returns the number of 48 kHz samples per channel carried by
// an Opus packet, derived from its TOC byte.
func packetSamples(pkt []byte) (int, error) {
	if len(pkt) == 0 {
		return 0, errors.New("empty packet")
	}
	toc := pkt[0]
	frameSamples := frameSamplesForConfig(toc >> 3)

	var frames int
	switch toc & 0x03 {
	case 0:
		frames = 1
	case 1, 2:
		frames = 2
	default:
		if len(pkt) < 2 {
			return 0, errors.New("code 3 packet missing frame count")
		}
		frames = int(pkt[1] & 0x3f)
		if frames == 0 {
			return 0, errors.New("code 3 packet with zero frames")
		}
	}

	total := frames * frameSamples
	if total > opusRate*opusMaxFrameMs/1000 {
		return 0, fmt.Errorf("packet duration exceeds %dms", opusMaxFrameMs)
	}
	return total, nil
}

func frameSamplesForConfig(config byte) int {
	switch {
	case config < 12: // SILK
		return []int{480, 960, 1920, 2880}[config%4]
	case config < 16: // Hybrid
		return []int{480, 960}[config%2]
	default: // CELT
		return []int{120, 240, 480, 960}[config%4]
	}
}

package turn

import (
	"context"
	"fmt"
	"sync"

	"github.com/aiml096/farmer-bot/pkg/bus"
	"github.com/aiml096/farmer-bot/pkg/providers"
	"github.com/aiml096/farmer-bot/pkg/voice"
)

type event struct {
	kind string // text | audio | action
	text string
}

type fakeReplier struct {
	mu      sync.Mutex
	events  []event
	textErr error
	failOn  int // fail only the n-th SendText call (1-based); 0 fails all
	calls   int
}

func (r *fakeReplier) SendText(_ context.Context, _ int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.textErr != nil && (r.failOn == 0 || r.failOn == r.calls) {
		return r.textErr
	}
	r.events = append(r.events, event{kind: "text", text: text})
	return nil
}

func (r *fakeReplier) SendAudio(_ context.Context, _ int64, audio []byte, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "audio", text: fmt.Sprintf("%s:%d", name, len(audio))})
	return nil
}

func (r *fakeReplier) SendAction(_ context.Context, _ int64, a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: "action", text: string(a)})
	return nil
}

func (r *fakeReplier) sent(kind string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e.text)
		}
	}
	return out
}

func (r *fakeReplier) textCount() int {
	return len(r.sent("text"))
}

type fakeChat struct {
	mu    sync.Mutex
	reply string
	errs  []error
	calls [][]providers.Message
}

func (c *fakeChat) Chat(_ context.Context, messages []providers.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]providers.Message(nil), messages...))
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return c.reply, nil
}

func (c *fakeChat) GetDefaultModel() string { return "fake-model" }

func (c *fakeChat) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeSynth struct {
	replier     *fakeReplier
	err         error
	calls       int
	textsBefore []int
	lastText    string
	lastLang    string
}

func (s *fakeSynth) Synthesize(_ context.Context, text, lang string) ([]byte, error) {
	s.calls++
	s.textsBefore = append(s.textsBefore, s.replier.textCount())
	s.lastText, s.lastLang = text, lang
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ID3" + text), nil
}

func (s *fakeSynth) IsAvailable() bool { return true }

type fakeTranscriber struct {
	resp  *voice.TranscriptionResponse
	err   error
	calls int
	got   []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, _ string) (*voice.TranscriptionResponse, error) {
	f.calls++
	f.got = audio
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeTranscriber) IsAvailable() bool { return true }

type fakeTranscoder struct {
	err   error
	calls int
}

func (f *fakeTranscoder) Transcode(_ context.Context, data []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("RIFF"), data...), nil
}

type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) FetchVoice(context.Context, bus.VoiceRef) ([]byte, error) {
	return f.data, f.err
}

// Package turn runs one conversational turn: input → (transcription) →
// chat reply → text delivery → speech synthesis → audio delivery.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aiml096/farmer-bot/pkg/bus"
	"github.com/aiml096/farmer-bot/pkg/history"
	"github.com/aiml096/farmer-bot/pkg/logger"
	"github.com/aiml096/farmer-bot/pkg/observability"
	"github.com/aiml096/farmer-bot/pkg/prompt"
	"github.com/aiml096/farmer-bot/pkg/providers"
	"github.com/aiml096/farmer-bot/pkg/utils"
	"github.com/aiml096/farmer-bot/pkg/voice"
	"github.com/aiml096/farmer-bot/pkg/workers"
)

var (
	ErrEmptyTranscript = errors.New("turn: nothing recognized in voice message")
	ErrEmptyReply      = errors.New("turn: chat reply was empty")
)

// Replier delivers output to the chat the message came from.
type Replier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendAudio(ctx context.Context, chatID int64, audio []byte, fileName string) error
	SendAction(ctx context.Context, chatID int64, action Action) error
}

// VoiceFetcher downloads the bytes of a voice note.
type VoiceFetcher interface {
	FetchVoice(ctx context.Context, ref bus.VoiceRef) ([]byte, error)
}

// Transcoder turns a compressed voice note into WAV.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte) ([]byte, error)
}

type Deps struct {
	Store       *history.Store
	Prompts     prompt.Builder
	Chat        providers.ChatClient
	Transcoder  Transcoder
	Transcriber voice.Transcriber
	Synthesizer voice.Synthesizer
	Fetcher     VoiceFetcher
	Replier     Replier
	Pool        *workers.Pool
}

type Options struct {
	Window     int
	SpeechLang string
	Retry      utils.RetryPolicy
}

type Orchestrator struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	var missing []string
	if deps.Store == nil {
		missing = append(missing, "store")
	}
	if deps.Chat == nil {
		missing = append(missing, "chat client")
	}
	if deps.Transcoder == nil {
		missing = append(missing, "transcoder")
	}
	if deps.Transcriber == nil {
		missing = append(missing, "transcriber")
	}
	if deps.Synthesizer == nil {
		missing = append(missing, "synthesizer")
	}
	if deps.Fetcher == nil {
		missing = append(missing, "voice fetcher")
	}
	if deps.Replier == nil {
		missing = append(missing, "replier")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("turn: missing dependencies: %s", strings.Join(missing, ", "))
	}
	if deps.Pool == nil {
		deps.Pool = workers.NewPool(workers.DefaultSize)
	}
	if deps.Prompts.Regional == "" {
		deps.Prompts = prompt.NewBuilder("")
	}
	if opts.Window <= 0 {
		opts.Window = history.DefaultWindow
	}
	if opts.SpeechLang == "" {
		opts.SpeechLang = "ml"
	}
	return &Orchestrator{deps: deps, opts: opts}, nil
}

// turn carries the transient state of one inbound message.
type turn struct {
	id    string
	msg   bus.InboundMessage
	state State
	start time.Time

	text  string
	lang  string
	reply string
}

func (t *turn) fields(extra map[string]any) map[string]any {
	f := map[string]any{
		"turn_id": t.id,
		"user_id": t.msg.SenderID,
		"chat_id": t.msg.ChatID,
		"state":   t.state.String(),
	}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

// Handle runs a turn to completion. Failures are reported to the user once
// here; callers only need the Result for logging or tests.
func (o *Orchestrator) Handle(ctx context.Context, msg bus.InboundMessage) Result {
	t := &turn{
		id:    uuid.NewString(),
		msg:   msg,
		state: StateAwaitingInput,
		start: time.Now(),
	}

	unlock := o.deps.Store.Lock(msg.SenderID)
	defer unlock()

	ctx, span := observability.StartSpan(ctx, "turn",
		observability.StringAttr("turn.id", t.id),
		observability.Int64Attr("user.id", msg.SenderID),
		observability.StringAttr("input.kind", string(msg.Kind)),
	)

	res := o.run(ctx, t)
	res.TurnID = t.id
	observability.EndSpan(span, res.Err)

	o.finish(ctx, t, res)
	return res
}

func (o *Orchestrator) run(ctx context.Context, t *turn) Result {
	msg := t.msg

	switch msg.Kind {
	case bus.KindCommand:
		switch msg.Command {
		case "start":
			return o.reply(ctx, t, GreetingText)
		case "reset":
			o.deps.Store.Reset(msg.SenderID)
			logger.InfoCF("turn", "Conversation reset", t.fields(nil))
			return o.reply(ctx, t, ResetText)
		}
		// Unknown commands are ordinary text.
		t.text, t.lang = strings.TrimSpace(msg.Content), voice.DefaultLanguage
	case bus.KindText:
		t.text, t.lang = strings.TrimSpace(msg.Content), voice.DefaultLanguage
	case bus.KindVoice:
		if msg.Voice == nil {
			return o.fail(t, FailureUnsupportedInput, errors.New("voice message without file reference"))
		}
		if res, ok := o.transcribe(ctx, t); !ok {
			return res
		}
	default:
		return o.fail(t, FailureUnsupportedInput, fmt.Errorf("unsupported input kind %q", msg.Kind))
	}

	if t.text == "" {
		return o.fail(t, FailureUnsupportedInput, errors.New("empty message"))
	}

	logger.InfoCF("turn", "User input", t.fields(map[string]any{
		"language": t.lang,
		"preview":  utils.Truncate(t.text, 80),
	}))

	t.state = StatePrompting
	o.deps.Store.Append(msg.SenderID, history.Message{Role: history.RoleUser, Content: t.text})
	window := o.deps.Store.RecentWindow(msg.SenderID, o.opts.Window)
	messages := make([]providers.Message, 0, len(window)+1)
	for _, m := range window {
		messages = append(messages, providers.Message{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, providers.Message{
		Role:    string(history.RoleUser),
		Content: o.deps.Prompts.Build(t.text, t.lang),
	})

	t.state = StateAwaitingChatReply
	o.action(ctx, t, ActionTyping)
	reply, err := o.chat(ctx, t, messages)
	if err != nil {
		return o.fail(t, FailureUpstreamChat, err)
	}
	t.reply = reply
	o.deps.Store.Append(msg.SenderID, history.Message{Role: history.RoleAssistant, Content: reply})

	if err := o.deps.Replier.SendText(ctx, msg.ChatID, reply); err != nil {
		return o.fail(t, FailureDelivery, fmt.Errorf("send text reply: %w", err))
	}
	t.state = StateRepliedText

	t.state = StateSynthesizing
	o.action(ctx, t, ActionRecordVoice)
	audio, err := o.synthesize(ctx, t)
	if err != nil {
		return o.fail(t, FailureUpstreamSpeech, err)
	}
	if err := o.deps.Replier.SendAudio(ctx, msg.ChatID, audio, ReplyAudioName); err != nil {
		return o.fail(t, FailureDelivery, fmt.Errorf("send audio reply: %w", err))
	}
	t.state = StateRepliedAudio

	return o.done(t)
}

func (o *Orchestrator) transcribe(ctx context.Context, t *turn) (Result, bool) {
	t.state = StateTranscribing
	o.action(ctx, t, ActionTyping)

	ctx, span := observability.StartSpan(ctx, "turn.transcribe")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	ogg, err := utils.DoWithRetry(ctx, o.retryPolicy(t, "fetch"), func(ctx context.Context) ([]byte, error) {
		return o.deps.Fetcher.FetchVoice(ctx, *t.msg.Voice)
	})
	if err != nil {
		return o.fail(t, FailureFetch, fmt.Errorf("fetch voice: %w", err)), false
	}

	wav, err := workers.Do(ctx, o.deps.Pool, func(ctx context.Context) ([]byte, error) {
		return o.deps.Transcoder.Transcode(ctx, ogg)
	})
	if err != nil {
		return o.fail(t, FailureTranscoding, fmt.Errorf("transcode voice: %w", err)), false
	}

	tr, err := utils.DoWithRetry(ctx, o.retryPolicy(t, "transcription"), func(ctx context.Context) (*voice.TranscriptionResponse, error) {
		return workers.Do(ctx, o.deps.Pool, func(ctx context.Context) (*voice.TranscriptionResponse, error) {
			return o.deps.Transcriber.Transcribe(ctx, wav, "voice.wav")
		})
	})
	if err != nil {
		return o.fail(t, FailureTranscription, fmt.Errorf("transcribe voice: %w", err)), false
	}

	t.text = strings.TrimSpace(tr.Text)
	t.lang = voice.NormalizeLanguage(tr.Language)
	if t.text == "" {
		err = ErrEmptyTranscript
		return o.fail(t, FailureTranscription, err), false
	}
	return Result{}, true
}

func (o *Orchestrator) chat(ctx context.Context, t *turn, messages []providers.Message) (string, error) {
	ctx, span := observability.StartSpan(ctx, "turn.chat",
		observability.IntAttr("chat.messages", len(messages)),
		observability.StringAttr("chat.model", o.deps.Chat.GetDefaultModel()),
	)
	reply, err := utils.DoWithRetry(ctx, o.retryPolicy(t, "chat"), func(ctx context.Context) (string, error) {
		return o.deps.Chat.Chat(ctx, messages)
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	observability.EndSpan(span, err)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (o *Orchestrator) synthesize(ctx context.Context, t *turn) ([]byte, error) {
	ctx, span := observability.StartSpan(ctx, "turn.synthesize",
		observability.IntAttr("speech.text_runes", len([]rune(t.reply))),
	)
	audio, err := utils.DoWithRetry(ctx, o.retryPolicy(t, "speech"), func(ctx context.Context) ([]byte, error) {
		return workers.Do(ctx, o.deps.Pool, func(ctx context.Context) ([]byte, error) {
			return o.deps.Synthesizer.Synthesize(ctx, t.reply, o.opts.SpeechLang)
		})
	})
	if err == nil && len(audio) == 0 {
		err = errors.New("synthesizer returned no audio")
	}
	observability.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	return audio, nil
}

// reply answers a command with a single text message.
func (o *Orchestrator) reply(ctx context.Context, t *turn, text string) Result {
	if err := o.deps.Replier.SendText(ctx, t.msg.ChatID, text); err != nil {
		return o.fail(t, FailureDelivery, err)
	}
	t.state = StateRepliedText
	return o.done(t)
}

func (o *Orchestrator) action(ctx context.Context, t *turn, a Action) {
	if err := o.deps.Replier.SendAction(ctx, t.msg.ChatID, a); err != nil {
		logger.DebugCF("turn", "Chat action failed", t.fields(map[string]any{"error": err.Error()}))
	}
}

func (o *Orchestrator) retryPolicy(t *turn, stage string) utils.RetryPolicy {
	p := o.opts.Retry
	p.Notify = func(n utils.RetryNotice) {
		logger.WarnCF("turn", "Retrying upstream call", t.fields(map[string]any{
			"stage":   stage,
			"attempt": n.Attempt,
			"total":   n.Total,
			"reason":  string(n.Decision.Reason),
			"delay":   n.Delay.String(),
			"error":   n.Err.Error(),
		}))
	}
	return p
}

func (o *Orchestrator) done(t *turn) Result {
	t.state = StateDone
	logger.InfoCF("turn", "Turn completed", t.fields(map[string]any{
		"elapsed_ms": time.Since(t.start).Milliseconds(),
	}))
	return Result{State: StateDone, Failure: FailureNone, Language: t.lang, Reply: t.reply}
}

func (o *Orchestrator) fail(t *turn, kind FailureKind, err error) Result {
	failedAt := t.state
	t.state = StateFailed
	return Result{
		State:    StateFailed,
		FailedAt: failedAt,
		Failure:  kind,
		Err:      err,
		Language: t.lang,
		Reply:    t.reply,
	}
}

// finish is the single place failures become user-visible.
func (o *Orchestrator) finish(ctx context.Context, t *turn, res Result) {
	if !res.Failed() {
		return
	}

	notice := FallbackText
	if res.Failure == FailureUnsupportedInput {
		notice = UnsupportedText
		logger.InfoCF("turn", "Unsupported input", t.fields(map[string]any{"kind": string(t.msg.Kind)}))
	} else {
		logger.ErrorCF("turn", "Turn failed", t.fields(map[string]any{
			"failed_at":  res.FailedAt.String(),
			"failure":    string(res.Failure),
			"error":      res.Err.Error(),
			"elapsed_ms": time.Since(t.start).Milliseconds(),
		}))
	}

	// The turn context may already be done; the notice still goes out.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := o.deps.Replier.SendText(sendCtx, t.msg.ChatID, notice); err != nil {
		logger.ErrorCF("turn", "Failed to deliver failure notice", t.fields(map[string]any{"error": err.Error()}))
	}
}

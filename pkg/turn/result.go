package turn

import "fmt"

// State is a stage of a conversational turn.
type State int

const (
	StateAwaitingInput State = iota
	StateTranscribing
	StatePrompting
	StateAwaitingChatReply
	StateRepliedText
	StateSynthesizing
	StateRepliedAudio
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateAwaitingInput:     "awaiting_input",
	StateTranscribing:      "transcribing",
	StatePrompting:         "prompting",
	StateAwaitingChatReply: "awaiting_chat_reply",
	StateRepliedText:       "replied_text",
	StateSynthesizing:      "synthesizing",
	StateRepliedAudio:      "replied_audio",
	StateDone:              "done",
	StateFailed:            "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FailureKind says which stage ended a turn early.
type FailureKind string

const (
	FailureNone             FailureKind = "none"
	FailureUnsupportedInput FailureKind = "unsupported_input"
	FailureFetch            FailureKind = "fetch"
	FailureTranscoding      FailureKind = "transcoding"
	FailureTranscription    FailureKind = "transcription"
	FailureUpstreamChat     FailureKind = "upstream_chat"
	FailureUpstreamSpeech   FailureKind = "upstream_speech"
	FailureDelivery         FailureKind = "delivery"
)

// Result is the outcome of one turn.
type Result struct {
	TurnID   string
	State    State
	FailedAt State
	Failure  FailureKind
	Err      error
	Language string
	Reply    string
}

func (r Result) Failed() bool {
	return r.State == StateFailed
}

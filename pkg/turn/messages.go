package turn

const (
	GreetingText = "ഹലോ! ഞാൻ നിങ്ങളുടെ കൃഷി സഹായി.\n" +
		"Malayalam അല്ലെങ്കിൽ English വോയ്സ് / ടെക്സ്റ്റ് മെസേജ് അയയ്ക്കൂ."
	UnsupportedText = "Only text or voice messages are supported."
	FallbackText    = "ക്ഷമിക്കണം! ഒരു പിശക് സംഭവിച്ചു, വീണ്ടും ശ്രമിക്കുക."
	ResetText       = "സംഭാഷണം മായ്ച്ചു. Conversation cleared."

	ReplyAudioName = "reply.mp3"
)

// Action is a transient status shown to the user while a turn runs.
type Action string

const (
	ActionTyping      Action = "typing"
	ActionRecordVoice Action = "record_voice"
)

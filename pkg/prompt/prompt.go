// Package prompt builds the instruction sent to the chat model for a user's
// message, depending on the language it was written or spoken in.
package prompt

import (
	"fmt"
	"strings"
)

// Language is the binary classification used to pick a prompt template.
type Language int

const (
	Other Language = iota
	English
)

func (l Language) String() string {
	if l == English {
		return "english"
	}
	return "other"
}

// DefaultRegionalLanguage is the reply language when none is configured.
const DefaultRegionalLanguage = "Malayalam"

// ParseLanguage classifies a language tag. Any tag starting with "en"
// (case-insensitive) is English; everything else, including "", is Other.
func ParseLanguage(tag string) Language {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(tag)), "en") {
		return English
	}
	return Other
}

// Builder renders prompts for a fixed regional language.
type Builder struct {
	Regional string
}

func NewBuilder(regional string) Builder {
	regional = strings.TrimSpace(regional)
	if regional == "" {
		regional = DefaultRegionalLanguage
	}
	return Builder{Regional: regional}
}

// Build returns the prompt for userText spoken or written in the language
// identified by tag.
func (b Builder) Build(userText, tag string) string {
	regional := b.Regional
	if regional == "" {
		regional = DefaultRegionalLanguage
	}

	if ParseLanguage(tag) == English {
		return fmt.Sprintf(
			"You are a %[1]s-speaking farming assistant. The user said in English: %[2]s\n"+
				"Reply in %[1]s. Include the English message and %[1]s translation in your reply.",
			regional, userText)
	}
	return fmt.Sprintf(
		"You are a %[1]s-speaking farming assistant. The user said in %[1]s: %[2]s\n"+
			"Reply naturally in %[1]s.",
		regional, userText)
}

// Build renders a prompt with the default regional language.
func Build(userText, tag string) string {
	return NewBuilder("").Build(userText, tag)
}

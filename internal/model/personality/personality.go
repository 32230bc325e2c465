package personality

import (
	"fmt"
	"strings"
)

// Mode names one of the bot's response styles.
type Mode string

const (
	Friendly     Mode = "friendly"
	Professional Mode = "professional"
	Funny        Mode = "funny"
	Expert       Mode = "expert"
	Concise      Mode = "concise"
)

// BotName is how the bot introduces itself inside system prompts.
const BotName = "AI Assistant"

// Profile bundles the completion settings for a mode.
type Profile struct {
	Mode        Mode    `json:"mode" yaml:"-"`
	Prompt      string  `json:"prompt" yaml:"prompt"`
	Temperature float32 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"maxTokens" yaml:"maxTokens"`
	Emoji       string  `json:"emoji" yaml:"emoji"`
}

// Seed returns the built-in profiles in display order.
func Seed() []Profile {
	return []Profile{
		{
			Mode: Friendly,
			Prompt: fmt.Sprintf(`You are a friendly and enthusiastic AI assistant named "%s".
Be warm, supportive, and encouraging. Use emojis occasionally. Keep responses brief (2-3 sentences).
You're chatting in a group, so be inclusive and friendly to everyone.`, BotName),
			Temperature: 0.7,
			MaxTokens:   200,
			Emoji:       "😊",
		},
		{
			Mode: Professional,
			Prompt: fmt.Sprintf(`You are a professional AI assistant named "%s".
Be formal, precise, and helpful. Focus on providing accurate information.
Keep responses concise and well-structured (2-3 sentences). Maintain a business-like tone.`, BotName),
			Temperature: 0.5,
			MaxTokens:   200,
			Emoji:       "💼",
		},
		{
			Mode: Funny,
			Prompt: fmt.Sprintf(`You are a witty and humorous AI assistant named "%s".
Make jokes, use puns, and keep the conversation light and entertaining.
Keep responses brief (2-3 sentences) but include humor. Don't overdo it - stay helpful!`, BotName),
			Temperature: 0.9,
			MaxTokens:   200,
			Emoji:       "😄",
		},
		{
			Mode: Expert,
			Prompt: fmt.Sprintf(`You are an expert AI assistant named "%s" with deep technical knowledge.
Provide detailed, technical explanations when needed. Use proper terminology.
Be thorough but concise (2-4 sentences). You're knowledgeable in programming, tech, and science.`, BotName),
			Temperature: 0.7,
			MaxTokens:   300,
			Emoji:       "🧠",
		},
		{
			Mode: Concise,
			Prompt: fmt.Sprintf(`You are "%s", a concise AI assistant.
Give direct, to-the-point answers. No fluff. 1-2 sentences maximum.
Be helpful but extremely brief.`, BotName),
			Temperature: 0.7,
			MaxTokens:   100,
			Emoji:       "⚡",
		},
	}
}

// ParseMode resolves a user-supplied name, ignoring case and surrounding space.
func ParseMode(name string) (Mode, bool) {
	mode := Mode(strings.ToLower(strings.TrimSpace(name)))
	switch mode {
	case Friendly, Professional, Funny, Expert, Concise:
		return mode, true
	}
	return "", false
}

package bot

import (
	"regexp"
	"strings"
)

// mention triggers, stripped in this order
var triggers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)@bot`),
	regexp.MustCompile(`(?i)@ai`),
	regexp.MustCompile(`(?i)@assistant`),
	regexp.MustCompile(`(?i)hey bot`),
	regexp.MustCompile(`(?i)hey ai`),
	regexp.MustCompile(`(?i)hi bot`),
	regexp.MustCompile(`(?i)hi ai`),
}

// CleanMessage removes bot-mention triggers and surrounding whitespace.
func CleanMessage(message string) string {
	for _, re := range triggers {
		message = re.ReplaceAllString(message, "")
	}
	return strings.TrimSpace(message)
}

// Predicate decides whether a raw inbound message involves the bot.
type Predicate func(message string) bool

// AlwaysRespond involves the bot in every non-empty message.
func AlwaysRespond(message string) bool {
	return strings.TrimSpace(message) != ""
}

// MentionOrCommand involves the bot only for commands and explicit mentions.
func MentionOrCommand(message string) bool {
	trimmed := strings.TrimSpace(message)
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "!") {
		return true
	}
	for _, re := range triggers {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrosst/voicerag/internal/params"
)

// systemPrompt renders the per-connection system prompt. Language behavior
// depends on the negotiated assistant locale and code-switch flag.
func systemPrompt(p params.ConnectionParams, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a warm, helpful voice assistant. Keep replies short and ")
	b.WriteString("conversational: one to three sentences, spoken aloud, no markdown, ")
	b.WriteString("no lists, no emojis.\n")
	fmt.Fprintf(&b, "Today's date is %s.\n", now.Format("Monday, January 2, 2006"))

	switch {
	case p.AssistantLang != "auto" && p.AllowCodeSwitch:
		fmt.Fprintf(&b, "Prefer %s, but switch languages when the user does.\n", p.AssistantLang)
	case p.AssistantLang != "auto":
		fmt.Fprintf(&b, "Always reply in %s, even if the user speaks another language.\n", p.AssistantLang)
	case p.AllowCodeSwitch:
		b.WriteString("Mirror the language the user speaks, switching freely mid-conversation.\n")
	default:
		b.WriteString("Reply in the language the user started the conversation in.\n")
	}

	b.WriteString("When the user refers to an uploaded file or document, you MUST call ")
	b.WriteString("search_documents; never claim you cannot access files. For current ")
	b.WriteString("events, weather or prices, call web_search. Tool results are ground ")
	b.WriteString("truth: repeat them faithfully and cite a source when one is given.")
	return b.String()
}

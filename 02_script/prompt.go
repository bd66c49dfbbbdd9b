package script

import (
	"fmt"
	"strings"

	"github.com/synapsedaili/youtube-automation/types"
)

const systemPrompt = `You are the head scriptwriter of Synapse Daily, a faceless YouTube channel about Cold War era technology, unbuilt cities and the futures that never happened.

You write narration that is read aloud by a text-to-speech voice, so:
- Write plain spoken English. No markdown, no bullet points, no headings.
- Never label sections (no "HOOK:", "CONCLUSION:" or similar).
- Never include stage directions, sound cues or speaker names.
- Use real names, dates and places when you know them. Do not invent quotes.`

// buildUserPrompt describes the script wanted for one topic and mode.
func buildUserPrompt(topic string, mode types.ModeProfile) string {
	var sb strings.Builder
	switch mode.Mode {
	case types.ModePodcast:
		minutes := int(mode.MaxDuration.Minutes())
		sb.WriteString(fmt.Sprintf("Write a %d-minute documentary podcast narration about:\n%s\n\n", minutes, topic))
		sb.WriteString("Open with a hook that drops the listener into the moment. ")
		sb.WriteString("Introduce the people behind the idea and tell the story in order, building tension around why it was never finished. ")
		sb.WriteString("Add a short personal reflection on what it says about that era. ")
		sb.WriteString("Close by imagining the world where it succeeded.\n\n")
	default:
		seconds := int(mode.MaxDuration.Seconds())
		sb.WriteString(fmt.Sprintf("Write a %d-second YouTube Shorts narration about:\n%s\n\n", seconds, topic))
		sb.WriteString("Start with a one-sentence hook. Explain the idea, the people and why it disappeared in a few short paragraphs. ")
		sb.WriteString("End on a question that makes viewers comment.\n\n")
	}
	sb.WriteString(fmt.Sprintf("Finish with this exact sentence: %q\n", mode.CallToAction))
	sb.WriteString(fmt.Sprintf("The whole script must be under %d characters.", mode.CharBudget))
	return sb.String()
}

// maxTokensFor caps output tokens near the character budget (~4 chars per token).
func maxTokensFor(mode types.ModeProfile, configured int) int {
	budget := mode.CharBudget/4 + 64
	if configured > 0 && configured < budget {
		return configured
	}
	return budget
}

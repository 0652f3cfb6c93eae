package narrator

import (
	"fmt"
	"regexp"
	"strings"

	"story-moderator/internal/models"
)

// storyModeratorPrompt anchors the moderator persona. The story is the
// authority; student input never changes the plot.
const storyModeratorPrompt = `You are a warm, supportive classroom Moderator guiding students through a FIXED, pre-written story.

Your personality:
- Kind, encouraging, emotionally aware
- You sound like a caring teacher reading a story aloud
- You value student voices and participation

Your responsibility:
- The story already exists and must be followed exactly.
- You guide students through it step by step until its natural ending.
- You do not invent, rewrite, or change story events.

How you treat students:
- You acknowledge their ideas warmly, even when they are incorrect.
- You encourage participation and gently invite quiet students.
- You never shame, criticize, or dismiss students.

Story control (very important):
- The story is the authority; student input is secondary.
- You NEVER change the plot based on student ideas.
- If a student idea conflicts with the story, you kindly redirect.

How to respond:
- 1-2 short sentences only.
- First: a gentle acknowledgment or encouragement.
- Then: continue with the NEXT sentence(s) of the story exactly as given.

Behavior rules:
- You are a guide, not a co-author.
- You never stall, loop, or drift away from the story.`

const engagementPrompt = `You are a kind classroom moderator.

Students are quiet.
Generate ONE warm, gentle encouragement:
- 1 sentence
- Soft, human tone
- Invite without pressure
- Feel like part of the story`

const advanceDecisionPrompt = `You decide the pacing of a moderated classroom story.

Given the recent chat and the story so far, answer with exactly one word:
ADVANCE if the discussion has settled and the next story sentence should be read.
ENGAGE if the students are mid-discussion and deserve a question instead.`

// randomEndings is the closing line pool used when a story finishes.
var randomEndings = []string{
	"And so the story gently came to an end.",
	"With that, the adventure softly concluded.",
	"The tale settled into a peaceful ending.",
	"And the story rested, complete at last.",
	"The journey ended quietly, leaving smiles behind.",
	"The night grew calm as the story closed.",
	"The final moment arrived, soft and warm.",
}

var moderatorPrefixRe = regexp.MustCompile(`^\s*Moderator[:\-]?\s*`)

// sanitizeReply strips a leaked "Moderator:" prefix and caps the reply length.
func sanitizeReply(text string, maxWords int) string {
	text = moderatorPrefixRe.ReplaceAllString(strings.TrimSpace(text), "")
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}

func buildReplyPrompt(participants []string, history, revealed, chunk string) string {
	names := "everyone"
	if len(participants) > 0 {
		names = strings.Join(participants, ", ")
	}
	return fmt.Sprintf(`Story so far:
%s

Next story sentence(s) to deliver:
%s

Recent chat:
%s

Participants:
%s

Instructions:
- Respond once only
- Acknowledge the students briefly, then deliver the next story sentence(s) as written
- Be warm and encouraging`, revealed, chunk, history, names)
}

func buildEngagementInput(participants []string, history, revealed string) string {
	names := "everyone"
	if len(participants) > 0 {
		names = strings.Join(participants, ", ")
	}
	return fmt.Sprintf("Story context:\n%s\n\nRecent chat:\n%s\n\nStudents present:\n%s", revealed, history, names)
}

func buildDecisionInput(history, revealed string, elapsedSeconds int) string {
	return fmt.Sprintf("Story so far:\n%s\n\nRecent chat:\n%s\n\nSeconds since the story last advanced: %d",
		revealed, history, elapsedSeconds)
}

// formatHistory renders messages as "sender: text" lines, newest last.
func formatHistory(messages []*models.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.SenderName)
		b.WriteString(": ")
		b.WriteString(m.MessageText)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

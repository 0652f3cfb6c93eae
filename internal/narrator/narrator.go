// Package narrator produces the moderator's voice: warm story narration,
// engagement nudges and pacing decisions. Every AI call degrades to a
// deterministic fallback so rooms keep moving when the backend is down.
package narrator

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"story-moderator/internal/models"
)

const maxReplyWords = 140

// Narrator generates moderator output for both pacing modes.
type Narrator interface {
	// ModeratorReply produces the active-mode narration for the next story
	// chunk, acknowledging the recent chat.
	ModeratorReply(ctx context.Context, participants []string, history []*models.Message, revealed, chunk string) string

	// EngagementResponse produces a gentle question that does not advance
	// the story.
	EngagementResponse(ctx context.Context, participants []string, history []*models.Message, revealed string) string

	// ShouldAdvance decides between advancing the story and engaging the
	// students after a silence window.
	ShouldAdvance(ctx context.Context, history []*models.Message, revealed string, sinceAdvance time.Duration) bool

	// PassiveChunk decorates a passive-mode chunk according to the
	// configured ending style.
	PassiveChunk(chunk string, isLast bool) string

	// RandomEnding picks a closing line for a finished story.
	RandomEnding() string
}

// Options tune prompt construction and the deterministic fallbacks.
type Options struct {
	Model                string
	HistoryLimit         int
	TokenBudget          int
	PassiveEndingStyle   string
	PassiveEndingMessage string
	AdvanceFallbackAfter time.Duration
}

type aiNarrator struct {
	client  Client
	opts    Options
	logger  *zap.Logger
	encoder *tiktoken.Tiktoken
}

// New creates a Narrator over the given backend. A nil client is valid and
// yields fallback-only behavior.
func New(client Client, opts Options, logger *zap.Logger) Narrator {
	log := logger.Named("Narrator")
	encoder, err := tiktoken.EncodingForModel(opts.Model)
	if err != nil {
		encoder, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			log.Warn("Failed to load tokenizer, history trimming falls back to message count", zap.Error(err))
			encoder = nil
		}
	}
	return &aiNarrator{client: client, opts: opts, logger: log, encoder: encoder}
}

func (n *aiNarrator) ModeratorReply(ctx context.Context, participants []string, history []*models.Message, revealed, chunk string) string {
	if n.client != nil {
		prompt := buildReplyPrompt(participants, n.trimmedHistory(history), revealed, chunk)
		text, err := n.client.GenerateText(ctx, storyModeratorPrompt, prompt)
		if err == nil {
			if reply := sanitizeReply(text, maxReplyWords); reply != "" {
				return reply
			}
		} else {
			n.logger.Warn("Moderator reply generation failed, using fallback", zap.Error(err))
		}
	}
	// Deliver the chunk verbatim so the story never stalls on a backend error.
	return chunk
}

func (n *aiNarrator) EngagementResponse(ctx context.Context, participants []string, history []*models.Message, revealed string) string {
	if n.client != nil {
		input := buildEngagementInput(participants, n.trimmedHistory(history), revealed)
		text, err := n.client.GenerateText(ctx, engagementPrompt, input)
		if err == nil {
			if reply := sanitizeReply(text, maxReplyWords); reply != "" {
				return reply
			}
		} else {
			n.logger.Warn("Engagement generation failed, using fallback", zap.Error(err))
		}
	}
	return "Take your time, your ideas are welcome whenever you are ready."
}

func (n *aiNarrator) ShouldAdvance(ctx context.Context, history []*models.Message, revealed string, sinceAdvance time.Duration) bool {
	// Hard pacing floor: after the fallback window the story advances no
	// matter what the backend would have said.
	if sinceAdvance >= n.opts.AdvanceFallbackAfter {
		return true
	}
	if n.client == nil {
		return false
	}
	input := buildDecisionInput(n.trimmedHistory(history), revealed, int(sinceAdvance.Seconds()))
	text, err := n.client.GenerateText(ctx, advanceDecisionPrompt, input)
	if err != nil {
		n.logger.Warn("Advance decision failed, engaging instead", zap.Error(err))
		return false
	}
	return strings.Contains(strings.ToUpper(text), "ADVANCE")
}

func (n *aiNarrator) PassiveChunk(chunk string, isLast bool) string {
	clean := strings.TrimSpace(chunk)
	if clean == "" {
		return clean
	}
	if isLast {
		// The final sentences still go out; the closing line follows them.
		if n.opts.PassiveEndingMessage != "" {
			return clean + " " + n.opts.PassiveEndingMessage
		}
		return clean
	}
	switch strings.ToLower(n.opts.PassiveEndingStyle) {
	case "question":
		return clean + " What do you feel might happen next?"
	case "pause":
		return clean + " The story pauses softly."
	default:
		return clean
	}
}

func (n *aiNarrator) RandomEnding() string {
	return randomEndings[rand.Intn(len(randomEndings))]
}

// trimmedHistory keeps the newest messages within both the message limit and
// the prompt token budget.
func (n *aiNarrator) trimmedHistory(history []*models.Message) string {
	if n.opts.HistoryLimit > 0 && len(history) > n.opts.HistoryLimit {
		history = history[len(history)-n.opts.HistoryLimit:]
	}
	if n.encoder == nil || n.opts.TokenBudget <= 0 {
		return formatHistory(history)
	}
	for len(history) > 1 {
		text := formatHistory(history)
		if len(n.encoder.Encode(text, nil, nil)) <= n.opts.TokenBudget {
			return text
		}
		history = history[1:]
	}
	return formatHistory(history)
}

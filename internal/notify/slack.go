// Package notify posts analysis results to Slack and provides delivery
// deduplication for inbound message boundaries.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// maxChunkLen stays under Slack's 4000-char message limit with headroom
// for the part header.
const maxChunkLen = 3800

// chunkDelay keeps multi-part posts in order.
const chunkDelay = 500 * time.Millisecond

// Poster is the part of the Slack API the notifier uses.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts snow analysis updates to a Slack channel.
type Notifier struct {
	logger  *slog.Logger
	api     Poster
	channel string
}

// New creates a Notifier on an existing Slack API client.
func New(logger *slog.Logger, api Poster, channel string) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger, api: api, channel: channel}
}

// NewFromToken creates a Notifier with its own Slack client. Returns nil
// when no token is configured; callers treat a nil Notifier as disabled.
func NewFromToken(logger *slog.Logger, token, channel string) *Notifier {
	if token == "" {
		return nil
	}
	return New(logger, slack.New(token), channel)
}

// PostAnalysis posts an analysis to the channel, splitting long content on
// section boundaries into ordered parts.
func (n *Notifier) PostAnalysis(ctx context.Context, analysis string) error {
	timestamp := time.Now().Format("January 2, 2006 at 3:04 PM")
	chunks := chunkAnalysis(analysis, timestamp)

	for i, chunk := range chunks {
		_, _, err := n.api.PostMessageContext(ctx, n.channel,
			slack.MsgOptionText(chunk, false),
			slack.MsgOptionDisableLinkUnfurl(),
			slack.MsgOptionDisableMediaUnfurl(),
		)
		if err != nil {
			return fmt.Errorf("post chunk %d/%d to %s: %w", i+1, len(chunks), n.channel, err)
		}
		n.logger.Info("posted analysis chunk", "chunk", i+1, "total", len(chunks), "channel", n.channel)

		if i < len(chunks)-1 {
			select {
			case <-time.After(chunkDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// chunkAnalysis splits an analysis into Slack-sized messages on paragraph
// boundaries, labeling continuation parts.
func chunkAnalysis(analysis, timestamp string) []string {
	single := fmt.Sprintf("*Automated Snow Analysis Update*\n_%s_\n\n%s", timestamp, analysis)
	if len(single) <= maxChunkLen {
		return []string{single}
	}

	var chunks []string
	part := 1
	current := fmt.Sprintf("*Automated Snow Analysis Update (Part 1)*\n_%s_\n\n", timestamp)

	for _, section := range strings.Split(analysis, "\n\n") {
		if len(current)+len(section)+2 > maxChunkLen {
			chunks = append(chunks, current)
			part++
			current = fmt.Sprintf("*...continued (Part %d)*\n\n%s\n\n", part, section)
			continue
		}
		current += section + "\n\n"
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

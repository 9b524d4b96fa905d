// Package telegram provides a client for sending analysis reports via Telegram Bot API.
package telegram

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/oracleconf/internal/analysis"
	"github.com/rewired-gh/oracleconf/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// Report is the outcome of one analysis run.
type Report struct {
	RunID        string
	Feed         string
	Method       analysis.Method
	Lookback     int
	InputSize    int
	SampledSize  int
	Summary      analysis.BreachSummary
	Records      int
	Correlations models.CorrelationResult
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends an analysis failure notification.
func (c *Client) SendError(runErr error) error {
	text := fmt.Sprintf("⚠️ *Analysis failed*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendReport sends the breach summary and correlation table of a run.
func (c *Client) SendReport(r Report) error {
	return c.sendMarkdownV2(formatReport(r))
}

// formatReport formats a run report into a Telegram MarkdownV2 message.
func formatReport(r Report) string {
	var b strings.Builder

	b.WriteString("📊 *Oracle Confidence Report*\n\n")
	if r.Feed != "" {
		fmt.Fprintf(&b, "Feed: %s\n", escapeMarkdownV2(r.Feed))
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, "Run: `%s`\n", escapeMarkdownV2(r.RunID))
	}
	fmt.Fprintf(&b, "Observations: %d → %d sampled\n\n", r.InputSize, r.SampledSize)

	s := r.Summary
	fmt.Fprintf(&b, "🚨 *Breaches* \\(\\> %s bps\\): %d of %d \\(%s\\)\n",
		escapeMarkdownV2(strconv.FormatFloat(s.Threshold, 'f', -1, 64)),
		s.Count, s.Total,
		escapeMarkdownV2(fmt.Sprintf("%.2f%%", s.Rate)))
	if s.HasStats {
		fmt.Fprintf(&b, "   mean %s, max %s, min %s bps\n",
			escapeMarkdownV2(fmt.Sprintf("%.2f", s.MeanConfidence)),
			escapeMarkdownV2(fmt.Sprintf("%.2f", s.MaxConfidence)),
			escapeMarkdownV2(fmt.Sprintf("%.2f", s.MinConfidence)))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "🔗 *Correlation* \\(%s, lookback %d, %d records\\)\n",
		escapeMarkdownV2(string(r.Method)), r.Lookback, r.Records)
	if len(r.Correlations) == 0 {
		b.WriteString("   not enough breaches to correlate\n")
		return b.String()
	}

	for _, name := range models.FeatureNames {
		fc, ok := r.Correlations[name]
		if !ok {
			continue
		}
		coef := "n/a"
		if !math.IsNaN(fc.Coefficient) {
			coef = fmt.Sprintf("%+.4f", fc.Coefficient)
		}
		fmt.Fprintf(&b, "   %s: *%s* %s\n",
			escapeMarkdownV2(name),
			escapeMarkdownV2(coef),
			escapeMarkdownV2(fmt.Sprintf("(%s %s)", fc.Strength, fc.Direction)))
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

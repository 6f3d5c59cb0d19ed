package services

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/chainswarm/chainswarm-go/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Notifier pushes swarm events to a Telegram chat. With no bot token it
// degrades to a no-op so the swarm runs fine without alerting configured.
type Notifier struct {
	bot    *bot.Bot
	chatID int64
	logger *logrus.Logger
}

// NewNotifier creates a notifier. An empty token disables delivery.
func NewNotifier(botToken string, chatID int64, logger *logrus.Logger) *Notifier {
	if logger == nil {
		logger = logrus.New()
	}

	var tgBot *bot.Bot
	if botToken != "" {
		var err error
		tgBot, err = bot.New(botToken)
		if err != nil {
			logger.WithError(err).Warn("Telegram bot initialization failed, notifications disabled")
			tgBot = nil
		}
	}
	return &Notifier{bot: tgBot, chatID: chatID, logger: logger}
}

// Enabled reports whether notifications will actually be delivered.
func (n *Notifier) Enabled() bool {
	return n.bot != nil && n.chatID != 0
}

// NotifyOpportunity announces a newly retained best opportunity.
func (n *Notifier) NotifyOpportunity(ctx context.Context, opp models.ArbitrageOpportunity) {
	msg := fmt.Sprintf(
		"🎯 *New best opportunity*\n\n*Route:* %s → %s\n*Token:* %s\n*Price diff:* %s%%\n*Est. profit:* %s\n*Gas:* %s\n*Confidence:* %s",
		opp.SourceChain, opp.TargetChain, opp.Token,
		opp.PriceDifference.Mul(hundred).StringFixed(2),
		opp.EstimatedProfit.StringFixed(4),
		opp.GasCost.StringFixed(4),
		opp.Confidence.StringFixed(3),
	)
	n.send(ctx, msg)
}

// NotifyTrade announces an executed trade.
func (n *Notifier) NotifyTrade(ctx context.Context, opp models.ArbitrageOpportunity, result *models.TradeResult) {
	if result == nil {
		return
	}
	msg := fmt.Sprintf(
		"✅ *Trade executed*\n\n*Route:* %s → %s\n*Token:* %s\n*Profit:* %s\n*Gas used:* %s",
		opp.SourceChain, opp.TargetChain, opp.Token,
		result.Profit.StringFixed(4),
		result.GasUsed.StringFixed(4),
	)
	n.send(ctx, msg)
}

func (n *Notifier) send(ctx context.Context, text string) {
	if !n.Enabled() {
		return
	}
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeMarkdown,
	})
	if err != nil {
		n.logger.WithError(err).Warn("Failed to send Telegram notification")
	}
}

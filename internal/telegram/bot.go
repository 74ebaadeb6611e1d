// Package telegram is the admin channel: flagged plan alerts and a usage
// report on request.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/logger"
	"ai-fitness-planner/internal/metrics"
	"ai-fitness-planner/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	usageDays      = 7
	maxAlertPlan   = 600
	maxReasonsShow = 10
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	HandleUpdate(r *http.Request) (*tgbotapi.Update, error)
}

// UsageReader reports daily LLM usage.
type UsageReader interface {
	GetDailyUsage(ctx context.Context, days int) ([]metrics.DailyUsage, error)
}

// Bot sends admin alerts and answers admin commands from the webhook.
type Bot struct {
	api     botAPI
	adminID int64
	usage   UsageReader
	dataDir string
	log     *logger.Logger
}

// NewBot authorizes against the Telegram API and registers the webhook when
// a webhook URL is configured.
func NewBot(cfg config.TelegramConfig, usage UsageReader, dataDir string, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log = log.With("component", "telegram")
	log.Info("authorized on telegram", "account", api.Self.UserName)

	if cfg.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.WebhookURL)
		if err != nil {
			return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.WebhookURL, err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.WebhookURL, err)
		}
		log.Info("webhook set", "description", resp.Description)
	}

	return newBot(api, cfg.AdminID, usage, dataDir, log), nil
}

func newBot(api botAPI, adminID int64, usage UsageReader, dataDir string, log *logger.Logger) *Bot {
	return &Bot{api: api, adminID: adminID, usage: usage, dataDir: dataDir, log: log}
}

// PlanFlagged alerts the admin about a plan the safety filter flagged.
// Without an admin id it does nothing.
func (b *Bot) PlanFlagged(_ context.Context, plan *planner.Plan) error {
	if b.adminID == 0 {
		return nil
	}
	return b.sendMarkdown(b.adminID, formatFlaggedAlert(plan))
}

// ServeHTTP handles webhook updates. Telegram retries non-2xx responses, so
// ignored and failed updates still answer 200.
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.log.Warn("failed to parse telegram update", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	if update.Message != nil {
		b.handleMessage(r.Context(), update.Message)
	}
	w.WriteHeader(http.StatusOK)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.From.ID != b.adminID || b.adminID == 0 {
		var from int64
		if msg.From != nil {
			from = msg.From.ID
		}
		b.log.Warn("ignoring telegram message from non-admin", "user_id", from)
		return
	}

	var text string
	switch msg.Command() {
	case "usage", "metrics":
		text = b.usageReport(ctx)
	case "health":
		text = formatHealth(metrics.GetSysHealth(b.dataDir))
	default:
		text = "Commands:\n/usage - LLM usage and system health\n/health - system health"
	}
	if err := b.sendMarkdown(msg.Chat.ID, text); err != nil {
		b.log.Warn("failed to reply on telegram", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) usageReport(ctx context.Context) string {
	usage, err := b.usage.GetDailyUsage(ctx, usageDays)
	if err != nil {
		b.log.Error("failed to fetch usage", "error", err)
		return "❌ Error fetching metrics."
	}
	return formatUsageReport(usage, metrics.GetSysHealth(b.dataDir))
}

func (b *Bot) sendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func formatFlaggedAlert(plan *planner.Plan) string {
	var sb strings.Builder
	sb.WriteString("⚠️ *Flagged plan*\n\n")
	fmt.Fprintf(&sb, "*Plan:* %s\n", escape(plan.Name))
	fmt.Fprintf(&sb, "*ID:* %s\n", escape(plan.ID))
	fmt.Fprintf(&sb, "*User:* %s\n", escape(plan.UserID))
	fmt.Fprintf(&sb, "*Synthesizer:* %s\n", escape(plan.Synthesizer.String()))

	sb.WriteString("\n*Reasons:*\n")
	reasons := plan.Reasons
	if len(reasons) > maxReasonsShow {
		reasons = reasons[:maxReasonsShow]
	}
	for _, r := range reasons {
		fmt.Fprintf(&sb, "• %s\n", escape(r))
	}
	if extra := len(plan.Reasons) - len(reasons); extra > 0 {
		fmt.Fprintf(&sb, "_and %d more_\n", extra)
	}

	excerpt := []rune(plan.Content)
	if len(excerpt) > maxAlertPlan {
		excerpt = append(excerpt[:maxAlertPlan], '…')
	}
	fmt.Fprintf(&sb, "\n*Excerpt:*\n%s", escape(string(excerpt)))
	return sb.String()
}

func formatUsageReport(usage []metrics.DailyUsage, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution)
		if d.Failures > 0 {
			fmt.Fprintf(&sb, ", %d failed", d.Failures)
		}
		sb.WriteString(")\n")
	}

	sb.WriteString("\n")
	sb.WriteString(formatHealth(health))
	return sb.String()
}

func formatHealth(h metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", h.AllocMB, h.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", h.Goroutines)
	if h.DataDiskSize != "" {
		fmt.Fprintf(&sb, "• Disk Data: %s\n", h.DataDiskSize)
	}
	return sb.String()
}

package jobs

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const cancelPrefix = "jobcancel_"

// TelegramHandler lists fetch jobs and lets users drop the ones still waiting for a worker.
type TelegramHandler struct {
	service *Service
}

func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes jobs-related Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	switch command {
	case "jobs":
		return h.listJobs(bot, chatID)
	case "cancel":
		id := strings.TrimSpace(args)
		if id == "" {
			return h.reply(bot, chatID, "Usage: /cancel <job id>")
		}
		return h.reply(bot, chatID, h.cancel(id))
	}
	return h.reply(bot, chatID, "❌ Unknown jobs command. Use /jobs")
}

func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"jobs":   "Show fetches waiting or in progress",
		"cancel": "Drop a fetch that has not started yet",
	}
}

// HandleCallback handles the cancel buttons attached to /jobs.
func (h *TelegramHandler) HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool {
	id, ok := strings.CutPrefix(callback.Data, cancelPrefix)
	if !ok {
		return false
	}
	bot.Request(tgbotapi.NewCallback(callback.ID, h.cancel(id)))
	return true
}

func (h *TelegramHandler) cancel(id string) string {
	job, ok := h.service.GetJob(id)
	if !ok {
		return "Job not found"
	}
	if job.Status != JobStatusPending {
		return fmt.Sprintf("%s is %s and cannot be cancelled", job.Name, job.Status)
	}
	if err := h.service.CancelJob(id); err != nil {
		return "Cancel failed: " + err.Error()
	}
	return "Cancelled " + job.Name
}

func (h *TelegramHandler) listJobs(bot *tgbotapi.BotAPI, chatID int64) error {
	active := h.service.ActiveJobs()
	if len(active) == 0 {
		return h.reply(bot, chatID, "📋 *No fetches in progress*")
	}

	var b strings.Builder
	b.WriteString("📋 *Fetches*\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, job := range active {
		fmt.Fprintf(&b, "%s `%s`: %s (%d%%)\n", statusEmoji(job.Status), job.Name, job.Message, job.Progress)
		if job.Status == JobStatusPending {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🚫 "+job.Name, cancelPrefix+job.ID)))
		}
	}

	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	if len(rows) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err := bot.Send(msg)
	return err
}

func (h *TelegramHandler) reply(bot *tgbotapi.BotAPI, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := bot.Send(msg)
	return err
}

func statusEmoji(status JobStatus) string {
	switch status {
	case JobStatusPending:
		return "⏳"
	case JobStatusRunning:
		return "🔄"
	case JobStatusCompleted:
		return "✅"
	case JobStatusFailed:
		return "❌"
	case JobStatusCancelled:
		return "🚫"
	}
	return "❓"
}

package requesting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/contre95/jukebox/src/music"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const voteCallbackPrefix = "vote_"

// TelegramHandler handles Telegram commands for song requests
type TelegramHandler struct {
	service *Service
}

// NewTelegramHandler creates a new Telegram handler for song requests
func NewTelegramHandler(service *Service) *TelegramHandler {
	return &TelegramHandler{service: service}
}

// HandleCommand processes request-related Telegram commands
func (h *TelegramHandler) HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error {
	switch command {
	case "request":
		return h.handleRequest(bot, chatID, args)
	case "queue":
		return h.handleQueue(bot, chatID)
	case "top":
		return h.handleTop(bot, chatID)
	default:
		h.send(bot, chatID, "❌ Unknown command. Use /request <song or url>, /queue or /top")
		return nil
	}
}

// GetCommands returns the available commands for this handler
func (h *TelegramHandler) GetCommands() map[string]string {
	return map[string]string{
		"request": "Request a song by search text, URL or #archive-key",
		"queue":   "Show the queue",
		"top":     "Show the most requested songs",
	}
}

// HandleCallback handles the vote buttons of /queue
func (h *TelegramHandler) HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool {
	if !strings.HasPrefix(callback.Data, voteCallbackPrefix) {
		return false
	}
	entryID := strings.TrimPrefix(callback.Data, voteCallbackPrefix)
	entry, err := h.service.Vote(context.Background(), entryID, 1)
	if err != nil {
		bot.Request(tgbotapi.NewCallback(callback.ID, "That song already played"))
		return true
	}
	bot.Request(tgbotapi.NewCallback(callback.ID, fmt.Sprintf("👍 %s now has %d votes", entry.Metadata.Title, entry.Votes)))
	return true
}

func (h *TelegramHandler) handleRequest(bot *tgbotapi.BotAPI, chatID int64, args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		h.send(bot, chatID, "❌ Please provide a song.\n\n*Usage:* `/request <search text|url|#key>`")
		return nil
	}
	req := Request{
		RequesterAddress:  fmt.Sprintf("telegram:%d", chatID),
		Archive:           true,
		ManuallyRequested: true,
	}
	if key, ok := parseArchiveKey(args); ok {
		req.Key = key
	} else {
		req.Query = args
	}

	accepted, err := h.service.HandleRequest(context.Background(), req)
	if err != nil {
		h.send(bot, chatID, "❌ "+describeError(err))
		return nil
	}
	switch {
	case accepted.Cached:
		h.send(bot, chatID, "✅ Queued right away")
	case accepted.Pending:
		h.send(bot, chatID, "⏳ Fetching, it will show up in /queue shortly")
	default:
		h.send(bot, chatID, "✅ Queued")
	}
	return nil
}

func (h *TelegramHandler) handleQueue(bot *tgbotapi.BotAPI, chatID int64) error {
	state := h.service.State()
	if state.Current == nil && len(state.Queue) == 0 {
		h.send(bot, chatID, "📭 *The queue is empty*")
		return nil
	}

	var b strings.Builder
	if state.Current != nil {
		fmt.Fprintf(&b, "▶️ *Now:* %s\n\n", describeTrack(state.Current.Metadata))
	}
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i, entry := range state.Queue {
		if !entry.Confirmed {
			fmt.Fprintf(&b, "%d. ⏳ %s\n", i+1, entry.Query)
			continue
		}
		fmt.Fprintf(&b, "%d. %s `%s`", i+1, describeTrack(*entry.Metadata), entry.Duration)
		if state.Voting {
			fmt.Fprintf(&b, " (%d 👍)", entry.Votes)
			buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("👍 %d", i+1), voteCallbackPrefix+entry.ID),
			))
		}
		b.WriteString("\n")
	}

	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	if len(buttons) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	}
	if _, err := bot.Send(msg); err != nil {
		slog.Error("Failed to send queue", "error", err, "chat_id", chatID)
	}
	return nil
}

func (h *TelegramHandler) handleTop(bot *tgbotapi.BotAPI, chatID int64) error {
	tracks, err := h.service.TopTracks(context.Background(), 10)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		h.send(bot, chatID, "📭 *Nothing requested yet*")
		return nil
	}
	var b strings.Builder
	b.WriteString("🏆 *Most requested*")
	if archived, err := h.service.ArchivedCount(context.Background()); err == nil {
		fmt.Fprintf(&b, " _(of %d archived)_", archived)
	}
	b.WriteString("\n\n")
	for i, t := range tracks {
		fmt.Fprintf(&b, "%d. %s (%d) `#%d`\n", i+1, describeTrack(music.TrackMetadata{Artist: t.Artist, Title: t.Title}), t.RequestCount, t.ID)
		if len(t.Queries) > 0 {
			fmt.Fprintf(&b, "    _%s_\n", t.Queries[0])
		}
	}
	h.send(bot, chatID, b.String())
	return nil
}

func (h *TelegramHandler) send(bot *tgbotapi.BotAPI, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(msg); err != nil {
		slog.Error("Failed to send message", "error", err, "chat_id", chatID)
	}
}

// parseArchiveKey accepts "#12" as archive key 12.
func parseArchiveKey(text string) (int64, bool) {
	if !strings.HasPrefix(text, "#") {
		return 0, false
	}
	key, err := strconv.ParseInt(text[1:], 10, 64)
	if err != nil || key <= 0 {
		return 0, false
	}
	return key, true
}

func describeTrack(md music.TrackMetadata) string {
	if md.Artist == "" {
		return md.Title
	}
	return md.Artist + " - " + md.Title
}

func describeError(err error) string {
	if fe, ok := music.IsFetchError(err); ok {
		switch fe.Reason {
		case music.FetchTooLarge:
			return "Too large: " + fe.Detail
		case music.FetchNotFound:
			return "Nothing found"
		default:
			return "Could not fetch the song"
		}
	}
	switch {
	case errors.Is(err, music.ErrUnsupportedSource):
		return "That source is not supported"
	case errors.Is(err, music.ErrNotFound):
		return "No archived song with that key"
	}
	return "Could not handle the request"
}

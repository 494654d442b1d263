package hosting

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/contre95/jukebox/src/features/config"
	"github.com/contre95/jukebox/src/features/jobs"
	"github.com/contre95/jukebox/src/features/requesting"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramCommandHandler interface that each feature implements
type TelegramCommandHandler interface {
	HandleCommand(bot *tgbotapi.BotAPI, chatID int64, command string, args string) error
	GetCommands() map[string]string                                             // Returns command -> description mapping
	HandleCallback(bot *tgbotapi.BotAPI, callback *tgbotapi.CallbackQuery) bool // Handle feature-specific callbacks
}

// TelegramBot handles Telegram bot operations
type TelegramBot struct {
	bot      *tgbotapi.BotAPI
	config   *config.Manager
	handlers map[string]TelegramCommandHandler
	updates  tgbotapi.UpdatesChannel
	stopChan chan struct{}

	mu            sync.Mutex
	pendingInputs map[string]string // chatID_messageID -> callbackData
}

// NewTelegramBot creates a new Telegram bot instance
func NewTelegramBot(cfg *config.Manager, requestService *requesting.Service, jobService *jobs.Service) (*TelegramBot, error) {
	telegramConfig := cfg.Get().Telegram

	if !telegramConfig.Enabled {
		return nil, fmt.Errorf("telegram bot is disabled in configuration")
	}

	if telegramConfig.Token == "" {
		return nil, fmt.Errorf("telegram bot token is not configured")
	}

	bot, err := tgbotapi.NewBotAPI(telegramConfig.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	slog.Info("Telegram bot initialized", "username", bot.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30

	telegramBot := &TelegramBot{
		bot:           bot,
		config:        cfg,
		handlers:      make(map[string]TelegramCommandHandler),
		updates:       bot.GetUpdatesChan(updateConfig),
		stopChan:      make(chan struct{}),
		pendingInputs: make(map[string]string),
	}

	telegramBot.RegisterHandler("requesting", requesting.NewTelegramHandler(requestService))
	telegramBot.RegisterHandler("config", config.NewTelegramHandler(cfg))
	telegramBot.RegisterHandler("jobs", jobs.NewTelegramHandler(jobService))

	return telegramBot, nil
}

// RegisterHandler registers a feature's command handler
func (t *TelegramBot) RegisterHandler(feature string, handler TelegramCommandHandler) {
	t.handlers[feature] = handler
	slog.Debug("Registered Telegram handler", "feature", feature)
}

// Start begins listening for Telegram updates
func (t *TelegramBot) Start() {
	slog.Info("Starting Telegram bot listener")

	for {
		select {
		case update := <-t.updates:
			if update.Message != nil {
				go t.handleMessage(update)
			}
			if update.CallbackQuery != nil {
				go t.handleCallbackQuery(update)
			}
		case <-t.stopChan:
			slog.Info("Stopping Telegram bot listener")
			return
		}
	}
}

// Stop gracefully stops the bot
func (t *TelegramBot) Stop() {
	t.bot.StopReceivingUpdates()
	close(t.stopChan)
}

// handleMessage processes incoming messages
func (t *TelegramBot) handleMessage(update tgbotapi.Update) {
	message := update.Message
	chatID := message.Chat.ID

	allowedUsers := t.config.Get().Telegram.AllowedUsers
	if len(allowedUsers) == 0 {
		slog.Warn("No allowed users configured", "chat_id", chatID)
		t.sendMessage(chatID, "❌ Access denied: No users configured. Please add users to the config.")
		return
	}

	username := message.From.UserName
	if username == "" {
		username = message.From.FirstName
		if message.From.LastName != "" {
			username += " " + message.From.LastName
		}
	}
	if !slices.Contains(allowedUsers, username) {
		slog.Warn("Unauthorized user", "username", username, "chat_id", chatID)
		t.sendMessage(chatID, "Unknown user, please add your user to the config")
		return
	}

	if message.IsCommand() {
		t.handleCommand(update)
		return
	}

	if message.ReplyToMessage != nil {
		if t.handleReplyInput(message) {
			return
		}
	}

	t.sendMessage(chatID, "🤖 Send /menu or /help to see available options")
}

// handleCommand processes bot commands
func (t *TelegramBot) handleCommand(update tgbotapi.Update) {
	message := update.Message
	chatID := message.Chat.ID
	command := message.Command()
	args := message.CommandArguments()

	slog.Debug("Processing command", "command", command, "args", args, "chat_id", chatID)

	switch command {
	case "help":
		t.handleHelp(chatID)
	case "start", "menu":
		t.handleMenu(chatID)
	default:
		if err := t.routeCommand(command, args, chatID); err != nil {
			slog.Error("Failed to handle command", "command", command, "error", err)
			t.sendMessage(chatID, "❌ Failed to process command")
		}
	}
}

// featureFor finds the handler that owns a command.
func (t *TelegramBot) featureFor(command string) (TelegramCommandHandler, bool) {
	for _, handler := range t.handlers {
		if _, ok := handler.GetCommands()[command]; ok {
			return handler, true
		}
	}
	return nil, false
}

// routeCommand routes commands to the appropriate feature handler
func (t *TelegramBot) routeCommand(command, args string, chatID int64) error {
	handler, exists := t.featureFor(command)
	if !exists {
		t.sendMessage(chatID, "❌ Unknown command. Send /help to see available commands.")
		return nil
	}
	return handler.HandleCommand(t.bot, chatID, command, args)
}

// sendMessage sends a message to the specified chat
func (t *TelegramBot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := t.bot.Send(msg)
	if err != nil {
		slog.Error("Failed to send message", "error", err, "chat_id", chatID)
	}
}

// handleCallbackQuery handles callback queries from inline keyboards
func (t *TelegramBot) handleCallbackQuery(update tgbotapi.Update) {
	callback := update.CallbackQuery

	if strings.HasPrefix(callback.Data, "menu_") {
		t.handleMenuCallback(callback)
		return
	}

	for _, handler := range t.handlers {
		if handler.HandleCallback(t.bot, callback) {
			return
		}
	}

	// Answer callback to remove loading state
	t.bot.Request(tgbotapi.NewCallback(callback.ID, ""))
}

// handleHelp lists every command the registered features offer.
func (t *TelegramBot) handleHelp(chatID int64) {
	var lines []string
	for _, handler := range t.handlers {
		for command, description := range handler.GetCommands() {
			lines = append(lines, fmt.Sprintf("/%s - %s", command, description))
		}
	}
	sort.Strings(lines)
	t.sendMessage(chatID, "*🎵 Jukebox commands*\n\n"+strings.Join(lines, "\n"))
}

// handleMenu shows main menu with inline keyboard
func (t *TelegramBot) handleMenu(chatID int64) {
	text := `*🎵 Jukebox Menu*

Choose an action below or use commands directly:`

	buttons := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("➕ Request", "menu_request"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Queue", "menu_queue"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("🏆 Top", "menu_top"),
			tgbotapi.NewInlineKeyboardButtonData("⏳ Downloads", "menu_jobs"),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Config", "menu_config"),
		},
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, err := t.bot.Send(msg)
	if err != nil {
		slog.Error("Failed to send menu", "error", err, "chat_id", chatID)
	}
}

// handleMenuCallback handles main menu callback queries
func (t *TelegramBot) handleMenuCallback(callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID

	t.bot.Request(tgbotapi.NewCallback(callback.ID, ""))

	switch callback.Data {
	case "menu_request":
		t.promptForInput(chatID, "➕ *Request a song*\n\nReply with search text, a URL or `#<archive key>`:", "menu_request")
	case "menu_queue":
		t.routeMenuCommand("queue", "", chatID)
	case "menu_top":
		t.routeMenuCommand("top", "", chatID)
	case "menu_jobs":
		t.routeMenuCommand("jobs", "", chatID)
	case "menu_config":
		t.routeMenuCommand("config", "", chatID)
	}
}

// promptForInput sends a message that forces user to reply with input
func (t *TelegramBot) promptForInput(chatID int64, promptText, callbackData string) {
	msg := tgbotapi.NewMessage(chatID, promptText)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.ForceReply{ForceReply: true}

	sentMsg, err := t.bot.Send(msg)
	if err != nil {
		slog.Error("Failed to send prompt", "error", err)
		return
	}
	t.storePendingInput(chatID, sentMsg.MessageID, callbackData)
}

// storePendingInput stores information about pending user input
func (t *TelegramBot) storePendingInput(chatID int64, messageID int, callbackData string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingInputs[fmt.Sprintf("%d_%d", chatID, messageID)] = callbackData
}

// handleReplyInput handles replies to our input prompts
func (t *TelegramBot) handleReplyInput(message *tgbotapi.Message) bool {
	key := fmt.Sprintf("%d_%d", message.Chat.ID, message.ReplyToMessage.MessageID)

	t.mu.Lock()
	callbackData, exists := t.pendingInputs[key]
	delete(t.pendingInputs, key)
	t.mu.Unlock()
	if !exists {
		return false
	}

	switch callbackData {
	case "menu_request":
		t.routeMenuCommand("request", message.Text, message.Chat.ID)
	default:
		return false
	}
	return true
}

// routeMenuCommand routes menu selections to appropriate feature handlers
func (t *TelegramBot) routeMenuCommand(command, args string, chatID int64) {
	handler, exists := t.featureFor(command)
	if !exists {
		t.sendMessage(chatID, "❌ Unknown menu option")
		return
	}
	if err := handler.HandleCommand(t.bot, chatID, command, args); err != nil {
		slog.Error("Failed to handle menu command", "command", command, "error", err)
		t.sendMessage(chatID, "❌ Failed to process menu selection")
	}
}

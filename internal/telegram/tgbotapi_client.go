package telegram

import (
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TGBotAPIClient adapts tgbotapi.BotAPI to the BotAPI interface.
type TGBotAPIClient struct {
	bot          *tgbotapi.BotAPI
	updateConfig tgbotapi.UpdateConfig
	mu           sync.Mutex
}

// NewTGBotAPIClient creates a new Telegram client using tgbotapi.
func NewTGBotAPIClient(token string, pollTimeout int) (*TGBotAPIClient, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	update := tgbotapi.NewUpdate(0)
	if pollTimeout <= 0 {
		pollTimeout = 30
	}
	update.Timeout = pollTimeout

	return &TGBotAPIClient{
		bot:          bot,
		updateConfig: update,
	}, nil
}

// SendMessage sends a message to the specified chat.
func (c *TGBotAPIClient) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := c.bot.Send(msg)
	return err
}

// SendMessageWithParseMode sends a message with the given parse mode.
func (c *TGBotAPIClient) SendMessageWithParseMode(chatID int64, text, parseMode string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	_, err := c.bot.Send(msg)
	return err
}

// SendMessageWithInlineKeyboard sends a message with an inline keyboard.
func (c *TGBotAPIClient) SendMessageWithInlineKeyboard(chatID int64, text, parseMode string, keyboard InlineKeyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode

	if keyboard.HasButtons() {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard.Rows))
		for _, row := range keyboard.Rows {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, btn := range row {
				if btn.URL != "" {
					buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
					continue
				}
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.CallbackData))
			}
			rows = append(rows, buttons)
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	_, err := c.bot.Send(msg)
	return err
}

// GetUpdates fetches new updates and converts them to Update values.
func (c *TGBotAPIClient) GetUpdates() ([]Update, error) {
	c.mu.Lock()
	updates, err := c.bot.GetUpdates(c.updateConfig)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if len(updates) > 0 {
		c.updateConfig.Offset = updates[len(updates)-1].UpdateID + 1
	}
	c.mu.Unlock()

	result := make([]Update, 0, len(updates))
	for _, update := range updates {
		if update.Message != nil && update.Message.From != nil {
			result = append(result, Update{
				ChatID:    update.Message.Chat.ID,
				UserID:    update.Message.From.ID,
				Username:  update.Message.From.UserName,
				FirstName: update.Message.From.FirstName,
				LastName:  update.Message.From.LastName,
				Text:      update.Message.Text,
				Timestamp: time.Unix(int64(update.Message.Date), 0),
			})
		} else if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
			// Acknowledge the press so the client stops its spinner.
			_, _ = c.bot.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, ""))
			result = append(result, Update{
				ChatID:    update.CallbackQuery.Message.Chat.ID,
				UserID:    update.CallbackQuery.From.ID,
				Username:  update.CallbackQuery.From.UserName,
				FirstName: update.CallbackQuery.From.FirstName,
				LastName:  update.CallbackQuery.From.LastName,
				Callback:  update.CallbackQuery.Data,
				Timestamp: time.Unix(int64(update.CallbackQuery.Message.Date), 0),
			})
		}
	}

	return result, nil
}

var _ BotAPI = (*TGBotAPIClient)(nil)
var _ ParseModeSender = (*TGBotAPIClient)(nil)
var _ InlineKeyboardSender = (*TGBotAPIClient)(nil)

// Package telegram binds the chat transport to the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/suPer8Hu/nutribot/internal/transport"
)

// API is the part of *tgbotapi.BotAPI the package uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sender implements transport.Sender. Every message is sent as HTML.
type Sender struct {
	api API
}

func NewSender(api API) *Sender {
	return &Sender{api: api}
}

func NewBotAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = debug
	return api, nil
}

func (s *Sender) Send(_ context.Context, chatID int64, text string, buttons [][]transport.Button) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if kb := keyboard(buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := s.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram send: %w", err)
	}
	return sent.MessageID, nil
}

func (s *Sender) Edit(_ context.Context, chatID int64, messageID int, text string, buttons [][]transport.Button) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = keyboard(buttons)
	if _, err := s.api.Request(edit); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

func (s *Sender) Delete(_ context.Context, chatID int64, messageID int) error {
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("telegram delete: %w", err)
	}
	return nil
}

func keyboard(rows [][]transport.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Action.String()))
		}
		out = append(out, r)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

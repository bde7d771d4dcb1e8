package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/luvu182/luxbot/pkg/log"
)

type TelegramConfig struct {
	Token string `env:"LUX_TELEGRAM_TOKEN,required,notEmpty"`
	// Empty means every chat the bot is added to.
	AllowedChats []int64 `env:"LUX_TELEGRAM_ALLOWED_CHATS" envSeparator:","`
}

func NewTelegramConfig(ctx context.Context) *TelegramConfig {
	c := &TelegramConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Telegram config")
	}
	return c
}

func (c TelegramConfig) IsChatAllowed(chatID int64) bool {
	if len(c.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

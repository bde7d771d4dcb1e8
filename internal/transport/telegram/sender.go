package telegram

import (
	"context"
	"strings"

	"github.com/luvu182/luxbot/pkg/conv"
	"github.com/luvu182/luxbot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const maxTelegramMsgLen = 4000 // Safety margin below 4096

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type sender struct {
	bot messageSender
}

func newSender(bot messageSender) *sender {
	return &sender{bot: bot}
}

// sendMarkdown converts Markdown to Telegram HTML and sends it in chunks if needed.
// A chunk Telegram refuses to parse is resent as plain text.
func (s *sender) sendMarkdown(ctx context.Context, to tele.Recipient, md string, opts *tele.SendOptions) error {
	logger := log.FromCtx(ctx)
	html := strings.TrimSpace(conv.MarkdownToTelegramHTML(md))
	if html == "" {
		return nil
	}

	chunks := splitHTML(html, maxTelegramMsgLen)
	for i, chunk := range chunks {
		o := &tele.SendOptions{ParseMode: tele.ModeHTML}
		if opts != nil && i == 0 {
			o.ReplyTo = opts.ReplyTo
			o.DisableNotification = opts.DisableNotification
		}

		if _, err := s.bot.Send(to, chunk, o); err != nil {
			logger.Warn().Err(err).Int("chunk", i).Int("len", len(chunk)).Msg("html rejected, sending plain text")

			o.ParseMode = tele.ModeDefault
			if _, err := s.bot.Send(to, conv.HTMLToText(chunk), o); err != nil {
				logger.Error().Err(err).Int("chunk", i).Msg("failed to send telegram chunk")
				return err
			}
		}
	}
	return nil
}

// splitHTML splits text into chunks respecting Telegram's limit.
// It tries to split at newlines to preserve formatting.
func splitHTML(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}

		cut := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/3 {
			cut = idx
		} else {
			// Never split inside a multi-byte rune.
			for cut > 0 && !utf8RuneStart(text[cut]) {
				cut--
			}
		}

		chunks = append(chunks, text[:cut])
		text = strings.TrimSpace(text[cut:])
	}
	return chunks
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

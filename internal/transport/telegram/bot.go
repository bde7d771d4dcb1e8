package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/luvu182/luxbot/internal/config"
	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/internal/service/assistant"
	"github.com/luvu182/luxbot/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const (
	baseContextKey = "base_context"
	answerFailed   = "Xin lỗi, mình chưa trả lời được lúc này. Bạn thử lại sau nhé."
)

type Assistant interface {
	Observe(ctx context.Context, msg assistant.Message) (int, error)
	Answer(ctx context.Context, msg assistant.Message) (assistant.Reply, error)
}

type Bot struct {
	bot       *tele.Bot
	cfg       *config.TelegramConfig
	assistant Assistant
	commands  core.CmdRouter
	sender    *sender
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	asst Assistant,
	commands core.CmdRouter,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:       b,
		cfg:       cfg,
		assistant: asst,
		commands:  commands,
		sender:    newSender(b),
	}

	// Use context from Signal with logger
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Middleware: only chats on the allow list
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Chat() == nil || !cfg.IsChatAllowed(c.Chat().ID) {
				return nil
			}
			return next(c)
		}
	})

	// Slash commands have no dedicated handlers, so telebot delivers them here too.
	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("username", b.bot.Me.Username).Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)

	msg := c.Message()
	chat := c.Chat()
	groupID := strconv.FormatInt(chat.ID, 10)
	scoped := log.FromCtx(ctx).With().Str("group_id", groupID).Int("message_id", msg.ID).Logger()
	ctx = scoped.WithContext(ctx)
	logger := log.FromCtx(ctx)

	if reply, ok := b.commands.Execute(ctx, groupID, c.Text()); ok {
		return b.sender.sendMarkdown(ctx, chat, reply, &tele.SendOptions{ReplyTo: msg})
	}

	in := newMessage(msg, chat, c.Sender(), b.bot.Me)
	if strings.TrimSpace(in.Text) == "" {
		return nil
	}

	if !isAddressed(msg, b.bot.Me) {
		n, err := b.assistant.Observe(ctx, in)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to observe message")
			return nil
		}
		logger.Debug().Int("stored", n).Msg("message observed")
		return nil
	}

	_ = c.Notify(tele.Typing)

	reply, err := b.assistant.Answer(ctx, in)
	if err != nil {
		logger.Error().Err(err).Msg("answer failed")
		return c.Reply(answerFailed)
	}

	logger.Info().
		Str("model", reply.Model).
		Bool("fallback", reply.UsedFallback).
		Int64("latency_ms", reply.LatencyMs).
		Int("memories", len(reply.Memories)).
		Msg("answered")

	return b.sender.sendMarkdown(ctx, chat, reply.Text, &tele.SendOptions{ReplyTo: msg})
}

// newMessage converts a Telegram message. Channel posts and anonymous admins
// arrive without a sender and are attributed to the chat.
func newMessage(msg *tele.Message, chat *tele.Chat, from *tele.User, me *tele.User) assistant.Message {
	m := assistant.Message{
		GroupID:    strconv.FormatInt(chat.ID, 10),
		GroupName:  chat.Title,
		UserID:     strconv.FormatInt(chat.ID, 10),
		SenderName: chat.Title,
		MessageID:  strconv.Itoa(msg.ID),
		SentAt:     msg.Time(),
	}
	if from != nil {
		m.UserID = strconv.FormatInt(from.ID, 10)
		m.SenderName = displayName(from)
	}
	username := ""
	if me != nil {
		username = me.Username
	}
	m.Text = stripMention(msg.Text, username)
	return m
}

// isAddressed reports whether the bot should answer rather than only listen:
// private chats, replies to the bot and explicit @mentions.
func isAddressed(msg *tele.Message, me *tele.User) bool {
	if msg == nil {
		return false
	}
	if msg.Private() {
		return true
	}
	if me == nil {
		return false
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil && msg.ReplyTo.Sender.ID == me.ID {
		return true
	}
	if me.Username == "" {
		return false
	}
	mention := "@" + me.Username
	for _, e := range msg.Entities {
		if e.Type == tele.EntityMention && strings.EqualFold(msg.EntityText(e), mention) {
			return true
		}
	}
	return false
}

func stripMention(text, username string) string {
	fields := strings.Fields(text)
	if username == "" {
		return strings.Join(fields, " ")
	}
	mention := "@" + username
	kept := fields[:0]
	for _, f := range fields {
		if strings.EqualFold(strings.TrimRight(f, ",.:!?"), mention) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/luvu182/luxbot/internal/core"
	"github.com/luvu182/luxbot/pkg/log"
)

type Router struct {
	commands  map[string]core.Command
	formatter *ResponseFormatter
}

func New(commands []core.Command) *Router {
	c := &Router{
		commands:  make(map[string]core.Command),
		formatter: NewResponseFormatter(),
	}

	for _, cmd := range commands {
		c.commands[cmd.Name()] = cmd
	}
	return c
}

func (c *Router) Execute(ctx context.Context, groupID, input string) (string, bool) {
	if !strings.HasPrefix(input, "/") {
		return "", false
	}

	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")
	// Telegram groups address commands as /name@botname.
	name, _, _ = strings.Cut(name, "@")
	args := parts[1:]

	cmd, ok := c.commands[name]
	if !ok {
		return fmt.Sprintf("Lệnh không tồn tại: /%s", name), true
	}

	result, err := cmd.Execute(ctx, groupID, args)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("command", name).Msg("command failed")
		if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound) {
			return c.formatter.Error(name, err), true
		}
		return c.formatter.Error(name, errors.New("không thể thực hiện lệnh, vui lòng thử lại")), true
	}
	return result, true
}

// ListCommands returns the commands sorted by name.
func (c *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		res = append(res, cmd)
	}
	slices.SortFunc(res, func(a, b core.Command) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return res
}

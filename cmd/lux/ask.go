package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/luvu182/luxbot/internal/config"
	"github.com/luvu182/luxbot/internal/service/assistant"
	"github.com/luvu182/luxbot/internal/service/ui"
	"github.com/luvu182/luxbot/pkg/log"
	"github.com/spf13/cobra"
)

var askFlags struct {
	group  string
	sender string
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the assistant a question about a group",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// stdout carries the answer
		var flushLog func()
		ctx, flushLog = log.NewContextWithWriter(ctx, debug || config.IsDebug(), os.Stderr)
		defer flushLog()

		a := newApp(ctx)
		defer a.close(ctx)

		msg := assistant.Message{
			GroupID:    askFlags.group,
			SenderName: askFlags.sender,
			Text:       strings.Join(args, " "),
		}

		out := cmd.OutOrStdout()
		reply, err := a.processor.StreamAnswer(ctx, msg, func(chunk string) error {
			_, err := fmt.Fprint(out, chunk)
			return err
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.DescStyle.Render(fmt.Sprintf("%s · %d ms · %d memories", reply.Model, reply.LatencyMs, len(reply.Memories))))
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askFlags.group, "group", "g", "", "group id the question is about")
	askCmd.Flags().StringVar(&askFlags.sender, "sender", "cli", "sender name recorded in history")
	_ = askCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(askCmd)
}

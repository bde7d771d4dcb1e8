package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/luvu182/luxbot/internal/config"
	"github.com/luvu182/luxbot/internal/transport/mcp"
	"github.com/luvu182/luxbot/pkg/log"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve group memory to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// stdout carries the protocol
		var flushLog func()
		ctx, flushLog = log.NewContextWithWriter(ctx, debug || config.IsDebug(), os.Stderr)
		defer flushLog()

		a := newApp(ctx)
		defer a.close(ctx)

		return mcp.NewServer(a.retriever, a.extractor, a.writer).Serve(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

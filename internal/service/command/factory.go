package command

import "github.com/luvu182/luxbot/internal/core"

type Deps struct {
	Retriever  Retriever
	Store      Deleter
	Writer     Rememberer
	Summarizer Summarizer
	Metrics    MetricsSource
	Models     ModelNamer
}

// NewRouter builds the router with every chat command, /help included.
func NewRouter(d Deps) *Router {
	var router *Router
	commands := []core.Command{
		NewSearchCommand(d.Retriever),
		NewTasksCommand(d.Retriever),
		NewDeadlinesCommand(d.Retriever),
		NewMemoriesCommand(d.Retriever),
		NewForgetCommand(d.Store),
		NewRememberCommand(d.Writer),
		NewSummaryCommand(d.Summarizer),
		NewStatsCommand(d.Metrics, d.Models),
		NewHelpCommand(func() []core.Command { return router.ListCommands() }),
	}
	router = New(commands)
	return router
}

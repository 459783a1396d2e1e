package main

import (
	"customer-insights/internal/insights/fallback"
	"customer-insights/internal/insights/response"

	"github.com/spf13/cobra"
)

type fallbackResult struct {
	Matched  bool               `json:"matched"`
	Topic    string             `json:"topic,omitempty"`
	Response *response.Response `json:"response"`
}

func newFallbackCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fallback <question>",
		Short: "Show which knowledge base entry answers a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := fallbackResult{}
			if entry, ok := fallback.NewKnowledgeBase().Match(args[0]); ok {
				resp := entry.Response
				res = fallbackResult{Matched: true, Topic: entry.Topic, Response: &resp}
			}
			return render(cmd.OutOrStdout(), opts.output, res)
		},
	}
}

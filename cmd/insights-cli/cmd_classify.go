package main

import (
	"fmt"
	"os"

	"customer-insights/internal/insights/chart"
	"customer-insights/internal/insights/dataset"

	"github.com/spf13/cobra"
)

type classifyResult struct {
	Rows           int                    `json:"rows"`
	Columns        []string               `json:"columns"`
	Classification dataset.Classification `json:"classification"`
	Chart          *chart.Spec            `json:"chart"`
}

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var question string

	cmd := &cobra.Command{
		Use:   "classify <file.json>",
		Short: "Classify the columns of a JSON dataset and pick a chart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading dataset: %w", err)
			}
			res, err := classifyFile(raw, question)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), opts.output, res)
		},
	}

	cmd.Flags().StringVarP(&question, "question", "q", "", "question used for keyword hints")
	return cmd
}

func classifyFile(raw []byte, question string) (classifyResult, error) {
	v, err := dataset.DecodeOrdered(raw)
	if err != nil {
		return classifyResult{}, fmt.Errorf("decoding dataset: %w", err)
	}
	// A full backend payload carries the rows under "data".
	if inner, ok := dataset.Field(v, "data"); ok && dataset.IsObject(v) {
		v = inner
	}

	d, err := dataset.Coerce(v)
	if err != nil {
		return classifyResult{}, err
	}

	c := dataset.Classify(d)
	return classifyResult{
		Rows:           d.Rows(),
		Columns:        d.ColumnNames(),
		Classification: c,
		Chart:          chart.Select(d, c, question),
	}, nil
}

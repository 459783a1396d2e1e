package main

import (
	"encoding/json"
	"fmt"
	"os"

	"customer-insights/pkg/registry"

	"github.com/spf13/cobra"
)

const defaultRegistryPath = "configs/activity-registry.json"

type activitySummary struct {
	ID          string `json:"id"`
	TaskType    string `json:"taskType"`
	Version     string `json:"version"`
	Timeout     string `json:"timeout"`
	Retries     int    `json:"retries"`
	Description string `json:"description"`
}

func newRegistryCmd(opts *rootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and validate the activity registry",
	}
	cmd.PersistentFlags().StringVar(&path, "registry", defaultRegistryPath, "path to the activity registry")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Check activity naming, task types and schemas",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := registry.LoadRegistry(path)
				if err != nil {
					return err
				}
				if err := reg.Validate(); err != nil {
					return fmt.Errorf("registry validation failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed (%d activities).\n", len(reg.Activities))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List registered activities",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := registry.LoadRegistry(path)
				if err != nil {
					return err
				}
				out := make([]activitySummary, 0, len(reg.Activities))
				for _, a := range reg.Activities {
					out = append(out, activitySummary{
						ID:          a.ID,
						TaskType:    a.TaskType,
						Version:     a.Version,
						Timeout:     a.Timeout,
						Retries:     a.Retries,
						Description: a.Description,
					})
				}
				return render(cmd.OutOrStdout(), opts.output, out)
			},
		},
		&cobra.Command{
			Use:   "check-input <task-type> <variables.json>",
			Short: "Validate job variables against a task type's input schema",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				reg, err := registry.LoadRegistry(path)
				if err != nil {
					return err
				}
				if _, ok := reg.Find(args[0]); !ok {
					return fmt.Errorf("task type %q is not registered", args[0])
				}

				data, err := os.ReadFile(args[1])
				if err != nil {
					return fmt.Errorf("reading variables: %w", err)
				}
				var vars map[string]interface{}
				if err := json.Unmarshal(data, &vars); err != nil {
					return fmt.Errorf("decoding variables: %w", err)
				}

				result, err := registry.NewValidator(reg).ValidateInput(args[0], vars)
				if err != nil {
					return err
				}
				if err := render(cmd.OutOrStdout(), opts.output, result); err != nil {
					return err
				}
				if !result.Valid {
					return fmt.Errorf("input does not match the %s schema", args[0])
				}
				return nil
			},
		},
	)
	return cmd
}

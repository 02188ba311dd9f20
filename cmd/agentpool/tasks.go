package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/agentpool/internal/config"
	"github.com/aatumaykin/agentpool/internal/constants"
	"github.com/aatumaykin/agentpool/internal/storage"
	"github.com/aatumaykin/agentpool/internal/task"
)

var tasksStatus []string

// tasksCmd represents the tasks command
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect tasks recorded in storage",
	Long: `Read task records straight from the configured storage. Works while a
scheduler is running against SQLite or Redis.`,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Print one task record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMirror(cmd.Context(), func(ctx context.Context, m *storage.Mirror) error {
			t, err := m.LoadTask(ctx, args[0])
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Fprintf(cmd.OutOrStdout(), constants.MsgTaskNotFound, args[0])
				return fmt.Errorf("task %s not found", args[0])
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(t.ToRecord())
		})
	},
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, err := parseStatuses(tasksStatus)
		if err != nil {
			return err
		}
		return withMirror(cmd.Context(), func(ctx context.Context, m *storage.Mirror) error {
			tasks, err := m.LoadTasks(ctx, statuses...)
			printTasks(cmd.OutOrStdout(), tasks, statuses)
			return err
		})
	},
}

func init() {
	tasksListCmd.Flags().StringSliceVarP(&tasksStatus, "status", "s", nil,
		"filter by status (pending, running, completed, failed, timeout, canceled); default all")

	tasksCmd.AddCommand(tasksShowCmd)
	tasksCmd.AddCommand(tasksListCmd)
}

func withMirror(ctx context.Context, fn func(context.Context, *storage.Mirror) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := storage.Open(openCtx, cfg.Storage.URL)
	if err != nil {
		return fmt.Errorf("failed to open storage %s: %w", cfg.MaskedStorageURL(), err)
	}
	if store == nil {
		return fmt.Errorf("persistence is disabled (storage.url = %q)", cfg.Storage.URL)
	}
	defer store.Close()

	return fn(ctx, newMirror(cfg, store))
}

func newMirror(cfg *config.Config, store storage.Store) *storage.Mirror {
	return storage.NewMirror(store, storage.WithTTL(
		time.Duration(cfg.Storage.TaskTTLHours)*time.Hour,
		time.Duration(cfg.Storage.AgentTTLHours)*time.Hour,
	))
}

var allStatuses = []task.Status{
	task.StatusPending, task.StatusRunning, task.StatusCompleted,
	task.StatusFailed, task.StatusTimeout, task.StatusCanceled,
}

func parseStatuses(names []string) ([]task.Status, error) {
	if len(names) == 0 {
		return allStatuses, nil
	}
	out := make([]task.Status, 0, len(names))
	for _, n := range names {
		s := task.Status(strings.ToLower(strings.TrimSpace(n)))
		if !s.Valid() {
			return nil, fmt.Errorf("invalid status %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

// printTasks writes one row per task. Terminal statuses share an index, so
// rows are filtered by the exact statuses requested.
func printTasks(w io.Writer, tasks []*task.Task, statuses []task.Status) {
	n := 0
	for _, t := range tasks {
		if !slices.Contains(statuses, t.Status) {
			continue
		}
		if n == 0 {
			fmt.Fprintf(w, constants.MsgTaskRow, "ID", "STATUS", "PRIORITY", "TYPE", "AGENT")
		}
		fmt.Fprintf(w, constants.MsgTaskRow, t.ID, t.Status, t.Priority, t.Type, t.AgentID)
		n++
	}
	if n == 0 {
		fmt.Fprint(w, constants.MsgNoTasks)
	}
}

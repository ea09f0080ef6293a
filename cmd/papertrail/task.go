// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/pkg/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage continuous import tasks (create, list, start, stop, delete)",
	Long: `Task manages the persisted import task records shared with the serve
daemon. Changes made here take effect when the daemon starts: a task
marked running resumes polling on the daemon's next launch.`,
}

// --- create subcommand ---

var taskCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new import task",
	Long: `Create registers a new import task in the stopped state. At least one
filter condition (--category, --text, or --semantic) is required;
conditions combine with AND.`,
	RunE: runTaskCreate,
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide a task name")
	}
	name := strings.Join(args, " ")

	category, _ := cmd.Flags().GetString("category")
	text, _ := cmd.Flags().GetString("text")
	semantic, _ := cmd.Flags().GetString("semantic")
	interval, _ := cmd.Flags().GetDuration("interval")

	filter := types.TaskFilter{Category: category, Text: text, Semantic: semantic}
	if filter.IsEmpty() {
		return fmt.Errorf("provide at least one filter: --category, --text, or --semantic")
	}

	cfg := loadConfig(cmd)
	if interval <= 0 {
		interval = cfg.Scheduler.DefaultInterval
	}

	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	t := &types.ImportTask{
		ID:       uuid.NewString(),
		Name:     name,
		Filter:   filter,
		Interval: interval,
		State:    types.TaskStopped,
		Created:  time.Now().UTC(),
	}
	if err := store.SaveTask(t); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Created task %s (%s), interval %s\n", t.ID, t.Name, t.Interval)
	return nil
}

// --- list subcommand ---

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import tasks",
	RunE:  runTaskList,
}

func runTaskList(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	tasks, err := store.Tasks()
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-8s  %-10s  %9s  %8s  %8s\n",
		"ID", "Name", "State", "Interval", "Attempted", "Imported", "Failures")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, t := range tasks {
		name := t.Name
		if len(name) > 20 {
			name = name[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-8s  %-10s  %9d  %8d  %8d\n",
			t.ID, name, t.State, t.Interval, t.Attempted, t.Imported, t.Failures)
	}
	return nil
}

// --- start / stop / delete subcommands ---

var taskStartCmd = &cobra.Command{
	Use:   "start [task-id]",
	Short: "Mark a task running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTaskState(cmd, args, types.TaskRunning)
	},
}

var taskStopCmd = &cobra.Command{
	Use:   "stop [task-id]",
	Short: "Mark a task stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setTaskState(cmd, args, types.TaskStopped)
	},
}

func setTaskState(cmd *cobra.Command, args []string, state types.TaskState) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one task ID")
	}

	cfg := loadConfig(cmd)
	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := findTask(store, args[0])
	if err != nil {
		return err
	}
	t.State = state
	if err := store.SaveTask(t); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Task %s is now %s\n", t.ID, t.State)
	return nil
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete [task-id]",
	Short: "Delete a task",
	Long: `Delete removes the task record. Papers the task imported stay in the
catalog.`,
	RunE: runTaskDelete,
}

func runTaskDelete(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one task ID")
	}

	cfg := loadConfig(cmd)
	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := findTask(store, args[0])
	if err != nil {
		return err
	}
	if err := store.DeleteTask(t.ID); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Deleted task %s (%s)\n", t.ID, t.Name)
	return nil
}

// findTask resolves an ID or unambiguous ID prefix to a stored task.
func findTask(store *catalog.Store, id string) (*types.ImportTask, error) {
	tasks, err := store.Tasks()
	if err != nil {
		return nil, err
	}

	var match *types.ImportTask
	for _, t := range tasks {
		if t.ID == id {
			return t, nil
		}
		if strings.HasPrefix(t.ID, id) {
			if match != nil {
				return nil, fmt.Errorf("task ID prefix %q is ambiguous", id)
			}
			match = t
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no task with ID %q", id)
	}
	return match, nil
}

func init() {
	taskCreateCmd.Flags().String("category", "", "arXiv category filter (e.g. cs.AI)")
	taskCreateCmd.Flags().String("text", "", "free-text search filter")
	taskCreateCmd.Flags().String("semantic", "", "semantic similarity filter query")
	taskCreateCmd.Flags().Duration("interval", 0, "poll interval (0 = use default)")

	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskStartCmd)
	taskCmd.AddCommand(taskStopCmd)
	taskCmd.AddCommand(taskDeleteCmd)

	rootCmd.AddCommand(taskCmd)
}

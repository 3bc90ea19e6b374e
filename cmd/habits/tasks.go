package main

import (
	"context"
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/DanielZivko/daily-habits/internal/model"
	"github.com/DanielZivko/daily-habits/internal/store"
)

var (
	addDue   string
	addGroup string
	addNotes string
	listAll  bool
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Long: `Add a task to the local store.

The due date accepts natural language:

  habits add "Drink water" --due tomorrow
  habits add "Weekly review" --due "friday 5pm" --group work`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openUserEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		task := &model.Task{
			Title:   args[0],
			Notes:   addNotes,
			GroupID: addGroup,
			UserID:  currentUser(cfg),
		}
		task.SetDefaults()

		if addDue != "" {
			due, err := parseDue(addDue)
			if err != nil {
				fatal("%v", err)
			}
			task.DueAt = &due
		}

		if err := st.Put(context.Background(), store.TableTasks, task); err != nil {
			fatal("failed to add task: %v", err)
		}

		fmt.Printf("Added %s (%s)\n", task.Title, task.ID)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List open tasks",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		recs, err := st.QueryByUser(context.Background(), store.TableTasks, currentUser(cfg))
		if err != nil {
			fatal("failed to list tasks: %v", err)
		}

		shown := 0
		for _, rec := range recs {
			task := rec.(*model.Task)
			if task.Done && !listAll {
				continue
			}
			mark := " "
			if task.Done {
				mark = "x"
			}
			line := fmt.Sprintf("[%s] %s  %s", mark, shortID(task.ID), task.Title)
			if task.DueAt != nil {
				line += fmt.Sprintf("  (due %s)", task.DueAt.Local().Format("2006-01-02 15:04"))
			}
			fmt.Println(line)
			shown++
		}
		if shown == 0 {
			fmt.Println("No tasks. Add one with 'habits add'.")
		}
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task as done",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openUserEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		ctx := context.Background()
		task, err := resolveTask(ctx, st, currentUser(cfg), args[0])
		if err != nil {
			fatal("%v", err)
		}

		now := time.Now().UTC()
		task.Done = true
		task.DoneAt = &now
		task.Touch()

		if err := st.Put(ctx, store.TableTasks, task); err != nil {
			fatal("failed to update task: %v", err)
		}
		fmt.Printf("Done: %s\n", task.Title)
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openUserEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		ctx := context.Background()
		task, err := resolveTask(ctx, st, currentUser(cfg), args[0])
		if err != nil {
			fatal("%v", err)
		}

		if err := st.Delete(ctx, store.TableTasks, task.ID); err != nil {
			fatal("failed to delete task: %v", err)
		}
		fmt.Printf("Deleted: %s\n", task.Title)
	},
}

// resolveTask finds a task by full ID or unique prefix.
func resolveTask(ctx context.Context, st *store.Store, userID, id string) (*model.Task, error) {
	if rec, err := st.Get(ctx, store.TableTasks, id); err == nil {
		return rec.(*model.Task), nil
	} else if err != store.ErrNotFound {
		return nil, err
	}

	recs, err := st.QueryByUser(ctx, store.TableTasks, userID)
	if err != nil {
		return nil, err
	}

	var match *model.Task
	for _, rec := range recs {
		task := rec.(*model.Task)
		if len(id) > 0 && len(task.ID) >= len(id) && task.ID[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("id prefix %q is ambiguous", id)
			}
			match = task
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no task with id %q", id)
	}
	return match, nil
}

// parseDue interprets a natural-language due date such as "tomorrow" or
// "friday 5pm".
func parseDue(text string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse due date %q: %w", text, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not understand due date %q", text)
	}
	return result.Time.UTC(), nil
}

func init() {
	addCmd.Flags().StringVar(&addDue, "due", "", "due date (natural language, e.g. \"tomorrow 9am\")")
	addCmd.Flags().StringVar(&addGroup, "group", "", "group id the task belongs to")
	addCmd.Flags().StringVar(&addNotes, "notes", "", "free-form notes")
	listCmd.Flags().BoolVar(&listAll, "all", false, "include completed tasks")

	rootCmd.AddCommand(addCmd, listCmd, doneCmd, rmCmd)
}

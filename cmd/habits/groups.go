package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DanielZivko/daily-habits/internal/model"
	"github.com/DanielZivko/daily-habits/internal/store"
)

var groupColor string

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage task groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openUserEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		group := &model.Group{
			Name:   args[0],
			Color:  groupColor,
			UserID: currentUser(cfg),
		}
		group.SetDefaults()

		if err := st.Put(context.Background(), store.TableGroups, group); err != nil {
			fatal("failed to add group: %v", err)
		}
		fmt.Printf("Added group %s (%s)\n", group.Name, group.ID)
	},
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		ctx := context.Background()
		userID := currentUser(cfg)

		groups, err := st.QueryByUser(ctx, store.TableGroups, userID)
		if err != nil {
			fatal("failed to list groups: %v", err)
		}
		if len(groups) == 0 {
			fmt.Println("No groups. Add one with 'habits group add'.")
			return
		}

		tasks, err := st.QueryByUser(ctx, store.TableTasks, userID)
		if err != nil {
			fatal("failed to count tasks: %v", err)
		}
		counts := make(map[string]int)
		for _, rec := range tasks {
			counts[rec.(*model.Task).GroupID]++
		}

		for _, rec := range groups {
			group := rec.(*model.Group)
			fmt.Printf("%s  %s (%d tasks)\n", shortID(group.ID), group.Name, counts[group.ID])
		}
	},
}

var groupRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a group and its tasks",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, st, err := openUserEnv()
		if err != nil {
			fatal("%v", err)
		}
		defer st.Close()

		ctx := context.Background()
		userID := currentUser(cfg)

		rec, err := st.Get(ctx, store.TableGroups, args[0])
		if err == store.ErrNotFound {
			fatal("no group with id %q", args[0])
		}
		if err != nil {
			fatal("%v", err)
		}
		group := rec.(*model.Group)

		// The group and its tasks go in one transaction so a reader
		// never sees orphaned tasks.
		err = st.WithTx(ctx, store.OriginLocal, func(tx *store.Tx) error {
			tasks, err := st.QueryByUser(ctx, store.TableTasks, userID)
			if err != nil {
				return err
			}
			for _, trec := range tasks {
				task := trec.(*model.Task)
				if task.GroupID != group.ID {
					continue
				}
				if err := tx.Delete(store.TableTasks, task.ID); err != nil {
					return err
				}
			}
			return tx.Delete(store.TableGroups, group.ID)
		})
		if err != nil {
			fatal("failed to delete group: %v", err)
		}
		fmt.Printf("Deleted group %s and its tasks\n", group.Name)
	},
}

func init() {
	groupAddCmd.Flags().StringVar(&groupColor, "color", "", "display color (e.g. #7aa2f7)")
	groupCmd.AddCommand(groupAddCmd, groupListCmd, groupRmCmd)
	rootCmd.AddCommand(groupCmd)
}

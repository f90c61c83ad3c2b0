package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/brushwork-ai/brushwork/internal/daemon"
	"github.com/brushwork-ai/brushwork/internal/domain"
)

func init() {
	tasksCmd.AddCommand(tasksListCmd, tasksShowCmd, tasksRmCmd)
	rootCmd.AddCommand(tasksCmd)
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and manage generation tasks",
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all tasks",
	RunE:    runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one task with its per-prompt results",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

var tasksRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a task and its generated images",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksRm,
}

func runTasksList(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(rootCmd.Version)
	if err != nil {
		return err
	}
	defer d.Close()

	tasks := d.Manager.List()
	if len(tasks) == 0 {
		fmt.Println("No tasks yet.")
		return nil
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tDONE\tFAILED\tTOTAL\tCREATED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			t.ID,
			t.Name,
			t.Status,
			t.CompletedCount,
			t.FailedCount,
			t.TotalCount,
			t.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(rootCmd.Version)
	if err != nil {
		return err
	}
	defer d.Close()

	task, ok := d.Manager.Get(args[0])
	if !ok {
		return domain.ErrTaskNotFound
	}

	fmt.Printf("Task:    %s (%s)\n", task.Name, task.ID)
	fmt.Printf("Status:  %s (%d done, %d failed of %d)\n",
		task.Status, task.CompletedCount, task.FailedCount, task.TotalCount)
	fmt.Printf("Created: %s\n\n", task.CreatedAt.Format("2006-01-02 15:04:05"))

	if len(task.Results) == 0 {
		fmt.Println("No results yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTATUS\tFILE\tKEY\tERROR")
	for i, r := range task.Results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, r.Status, r.Filename, r.KeyUsed, r.Error)
	}
	return w.Flush()
}

func runTasksRm(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(rootCmd.Version)
	if err != nil {
		return err
	}
	defer d.Close()

	task, err := d.Manager.Delete(args[0])
	if err != nil {
		return err
	}
	d.Files.DeleteTaskArtifacts(task)
	if task.InputImagePath != "" {
		d.Files.DeleteUpload(task.InputImagePath)
	}

	fmt.Printf("Deleted task %s\n", task.ID)
	return nil
}

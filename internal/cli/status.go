package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brushwork-ai/brushwork/internal/daemon"
	"github.com/brushwork-ai/brushwork/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show key pool and task queue status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := daemon.New(rootCmd.Version)
	if err != nil {
		return err
	}
	defer d.Close()

	counts, total := d.Manager.Counts()
	qs := d.Manager.QueueStatus()

	fmt.Printf("API keys:   %d (%d available, %d cooling down)\n",
		d.Pool.Size(), len(d.Pool.Available()), d.Pool.CoolingCount())
	fmt.Printf("Tasks:      %d total\n", total)
	for _, st := range []domain.TaskStatus{
		domain.TaskPending, domain.TaskQueued, domain.TaskProcessing,
		domain.TaskCompleted, domain.TaskFailed, domain.TaskPartial,
	} {
		if counts[st] > 0 {
			fmt.Printf("  %-11s %d\n", string(st)+":", counts[st])
		}
	}
	fmt.Printf("Queue:      %d waiting\n", qs.QueueLength)
	if qs.NextTask != "" {
		fmt.Printf("Next task:  %s\n", qs.NextTask)
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tuanbt/qslurm/cmd/qslurm/tui"
	"github.com/tuanbt/qslurm/internal/scheduler"
)

func newTopCmd(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the live Slurm queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireScheduler(); err != nil {
				return err
			}

			if once || !isInteractiveTerminal() {
				rows, err := a.client.Queue(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list queue: %w", err)
				}
				a.logger.Debug("listed queue", "rows", len(rows))
				printQueue(cmd.OutOrStdout(), rows)
				return nil
			}

			model := tui.NewTopModel(a.client, a.registry, a.cfg.StatusInterval())
			defer model.Close()

			p := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("failed to run queue view: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Print the queue once and exit")
	return cmd
}

func printQueue(w io.Writer, rows []scheduler.Snapshot) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "Queue is empty.")
		return
	}

	fmt.Fprintf(w, "%-10s %-12s %-20s %-10s %-12s %-10s %-5s %s\n", "JOBID", "PARTITION", "NAME", "USER", "STATE", "TIME", "NODES", "NODELIST")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, r := range rows {
		fmt.Fprintf(w, "%-10s %-12.12s %-20.20s %-10.10s %-12s %-10s %-5s %s\n",
			r.JobID, r.Queue, r.Name, r.User, r.State, r.Elapsed, r.Nodes, r.NodeList)
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuanbt/qslurm/internal/config"
)

func newTemplateCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "template <name>",
		Short: "Write <name>.sbatch with qslurm's log locations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			path := name + ".sbatch"

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}

			content := renderTemplate(name, a.cfg.Template, a.cfg.LogDirectory)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			if err := os.MkdirAll(a.cfg.LogDirectory, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}

			a.logger.Debug("wrote sbatch template", "path", path, "partition", a.cfg.Template.Partition, "log_directory", a.cfg.LogDirectory)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Keep the -o and -e lines so qslurm can find the logs.\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing script")
	return cmd
}

// renderTemplate builds an sbatch script whose -o/-e paths match
// config.JobLogPath and config.JobErrPath.
func renderTemplate(name string, t config.TemplateConfig, logDir string) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "#SBATCH -J %s\n", name)
	fmt.Fprintf(&b, "#SBATCH -p %s\n", t.Partition)
	fmt.Fprintf(&b, "#SBATCH -n %d\n", t.Tasks)
	fmt.Fprintf(&b, "#SBATCH -c %d\n", t.CPUs)
	fmt.Fprintf(&b, "#SBATCH -o %s\n", filepath.ToSlash(filepath.Join(logDir, "%j.log")))
	fmt.Fprintf(&b, "#SBATCH -e %s\n", filepath.ToSlash(filepath.Join(logDir, "%j.err")))
	b.WriteString("\n# your commands here\n")
	return b.String()
}

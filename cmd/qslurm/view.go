package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func newViewCmd(a *app) *cobra.Command {
	var noUI bool

	cmd := &cobra.Command{
		Use:   "view <path>",
		Short: "Follow any log file until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				return fmt.Errorf("%s is a directory", path)
			}

			name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			_, err := a.runSession(cmd.Context(), cmd.OutOrStdout(), sessionRequest{
				jobID:   name,
				logPath: path,
				noUI:    noUI,
			})
			return err
		},
	}

	cmd.Flags().BoolVar(&noUI, "no-ui", false, "Print plain output instead of the interactive view")
	return cmd
}

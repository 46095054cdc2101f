package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hubctl",
		Short:         "MileIQ migration hub: checklist, roadmap and SEO dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStatusCmd(),
		newRoadmapCmd(),
		newToggleCmd(),
		newDoneCmd(),
		newUploadCmd(),
		newRemoveUploadCmd(),
		newSaveCmd(),
		newExportCmd(),
		newImportCmd(),
		newClearCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newValidateCmd(),
		newRefreshCmd(),
		newMCPCmd(),
	)
	return root
}

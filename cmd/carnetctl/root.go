package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(open appOpener) *cobra.Command {
	var configFlag string
	var kindFlag string
	var jsonFlag bool

	ctx := newCommandContext(open, &configFlag, &kindFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "carnetctl",
		Short:         "Manage membership and parking card applications",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&kindFlag, "kind", "k", "membership", "Record kind: membership or parking")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newRejectionsCommand(ctx))
	rootCmd.AddCommand(newApproveCommand(ctx))
	rootCmd.AddCommand(newTransitionCommand(ctx))
	rootCmd.AddCommand(newRejectCommand(ctx))
	rootCmd.AddCommand(newBatchCommand(ctx))
	rootCmd.AddCommand(newCropCommand(ctx))

	return rootCmd
}

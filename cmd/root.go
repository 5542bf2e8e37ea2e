package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "accmux",
		Short:         "Multiplex agent CLI accounts across work sessions",
		Long:          "accmux keeps a registry of agent CLI account profiles, assigns them to running work sessions, and rotates a session to the best available account when its current one is throttled or exhausted.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newSessionCmd(app),
		newSwitchCmd(app),
		newConfigCmd(app),
		newNextCmd(app),
		newUsageCmd(app),
		newRunCmd(app),
	)

	return rootCmd
}

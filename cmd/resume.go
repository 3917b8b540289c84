package cmd

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <redirected url>",
	Short: "Complete a sign in started with call --no-browser and call the function URL",
	Args:  cobra.ExactArgs(1),
	RunE:  resume,
}

func init() {
	addTargetFlags(resumeCmd)
	RootCmd.AddCommand(resumeCmd)
}

func resume(cmd *cobra.Command, args []string) error {
	t, err := target()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), t)
	if err != nil {
		return err
	}
	if err := a.flow.Resume(cmd.Context(), args[0]); err != nil {
		return err
	}
	return invokeAndPrint(cmd, a)
}

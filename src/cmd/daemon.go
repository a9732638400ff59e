package cmd

import (
	"github.com/spf13/cobra"

	"github.com/commerceblock/coordinator/src/coordinator"
)

func init() {
	RootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Track service chain requests, emit challenges and collect guardnode responses",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := coordinator.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		<-ctx.Done()

		controller.StopWait()

		return nil
	},
}

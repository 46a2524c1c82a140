package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/colebryant/upd-ping-client/core"
)

var (
	settings = core.DefaultSettings()
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "updping [host]",
	Short: "updping measures reachability and latency over UDP",
	Long: "updping emulates ICMP echo request/reply semantics over UDP against a cooperating" +
		" echo server, reporting round-trip latency and loss",
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			settings.LoggingLevel = uint32(logrus.DebugLevel)
		}

		runner, err := newRunner(args[0], settings)
		if err != nil {
			cmd.PrintErrln(err)
			return err
		}

		runner.Start()
		if err := runner.Wait(); err != nil {
			cmd.PrintErrln(err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.Flags().IntVarP(&settings.Port, "port", "p", settings.Port, "UDP port of the echo server")
	rootCmd.Flags().IntVarP(&settings.Count, "count", "c", settings.Count, "number of echo requests to send")
	rootCmd.Flags().IntVarP(&settings.Period, "period", "i", settings.Period, "milliseconds between the start of one request and the next")
	rootCmd.Flags().IntVarP(&settings.Timeout, "timeout", "W", settings.Timeout, "milliseconds to wait for each reply")
	rootCmd.Flags().IntVarP(&settings.PayloadSize, "size", "s", settings.PayloadSize, "payload bytes carried by each request")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log session activity")
}

func Execute() error {
	return rootCmd.Execute()
}

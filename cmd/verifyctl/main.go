package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(0)
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("error during command execution: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "verifyctl",
		Short:         "Client for the certificate verification service.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newVerifyCmd())
	cmd.AddCommand(newSeedCmd())
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dosage/replication"
)

func newCodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code",
		Short: "Print a fresh room code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), replication.FormatCode(replication.NewRoomCode()))
			return err
		},
	}
}

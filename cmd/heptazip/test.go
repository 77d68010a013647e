package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heptazip/heptazip"
)

func newTestCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "test <archive>",
		Short: "Verify every entry's checksum without writing any files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := heptazip.OpenReaderWithPassword(args[0], password)
			if err != nil {
				return fmt.Errorf("heptazip: error opening archive: %w", err)
			}
			defer rc.Close()

			result, err := rc.Test(cmd.Context())
			if err != nil {
				return fmt.Errorf("heptazip: error testing archive: %w", err)
			}

			for _, f := range result.Failures {
				fmt.Printf("FAILED: %s: %v\n", f.Path, f.Err) //nolint:forbidigo
			}

			fmt.Printf("%d entries ok, %d failed\n", result.EntriesExtracted, result.EntriesFailed) //nolint:forbidigo

			if result.EntriesFailed > 0 {
				return fmt.Errorf("heptazip: %d entries failed verification", result.EntriesFailed)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "decryption password")

	return cmd
}

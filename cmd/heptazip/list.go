package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heptazip/heptazip"
)

func newListCommand() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "List entries in an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rc, err := heptazip.OpenReaderWithPassword(args[0], password)
			if err != nil {
				return fmt.Errorf("heptazip: error opening archive: %w", err)
			}
			defer rc.Close()

			for _, f := range rc.File {
				fmt.Printf("%10d  %s  %s\n", f.UncompressedSize, f.Modified.Format("2006-01-02 15:04:05"), f.Name) //nolint:forbidigo
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "decryption password")

	return cmd
}

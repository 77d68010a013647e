package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heptazip/heptazip"
)

func newInfoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <archive>",
		Short: "Report archive statistics, recovering from an SFX stub or damaged header if necessary",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("heptazip: error opening archive: %w", err)
			}
			defer f.Close()

			fi, err := f.Stat()
			if err != nil {
				return fmt.Errorf("heptazip: error statting archive: %w", err)
			}

			zr, result, err := heptazip.RecoverArchive(f, fi.Size())
			if err != nil {
				return fmt.Errorf("heptazip: error recovering archive: %w", err)
			}

			fmt.Printf("status: %s\n", result.Status)   //nolint:forbidigo
			fmt.Printf("offset: %d\n", result.Offset)   //nolint:forbidigo
			fmt.Printf("entries: %d\n", result.Entries) //nolint:forbidigo

			for _, w := range result.Warnings {
				logger.Warn(w)
			}

			info := zr.Info()
			fmt.Printf("total uncompressed: %d bytes\n", info.TotalUncompressedSize) //nolint:forbidigo

			return nil
		},
	}

	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heptazip/heptazip"
)

func newExtractCommand() *cobra.Command {
	var (
		password string
		dest     string
		parallel int
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "extract <archive>",
		Short: "Extract an archive to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := heptazip.OpenReaderWithPassword(args[0], password)
			if err != nil {
				return fmt.Errorf("heptazip: error opening archive: %w", err)
			}
			defer rc.Close()

			policy := heptazip.OverwritePrompt
			if force {
				policy = heptazip.OverwriteAlways
			}

			opts := heptazip.ExtractOptions{
				Overwrite: policy,
				Parallel:  parallel,
			}

			dst := &heptazip.FileSystemDestination{Root: dest, Options: opts}

			result, err := rc.Extract(cmd.Context(), dst, nil, opts)
			if err != nil {
				return fmt.Errorf("heptazip: error extracting archive: %w", err)
			}

			logger.Info("extraction complete", "extracted", result.EntriesExtracted, "failed", result.EntriesFailed)

			for _, f := range result.Failures {
				logger.Error("entry failed", "name", f.Path, "error", f.Err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "decryption password")
	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "destination directory")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "number of folders to decode concurrently")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing files without prompting")

	return cmd
}

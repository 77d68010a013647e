package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/heptazip/heptazip"
)

var methodNames = map[string]heptazip.CompressionMethod{
	"copy":    heptazip.Copy,
	"lzma":    heptazip.LZMA,
	"lzma2":   heptazip.LZMA2,
	"deflate": heptazip.Deflate,
	"bzip2":   heptazip.BZip2,
	"lz4":     heptazip.LZ4,
	"zstd":    heptazip.Zstd,
	"brotli":  heptazip.Brotli,
}

func newCreateCommand() *cobra.Command {
	var (
		password string
		method   string
		level    int
		solid    bool
		encrypt  bool
	)

	cmd := &cobra.Command{
		Use:   "create <archive> <path>...",
		Short: "Create an archive from one or more files or directories",
		Args:  cobra.MinimumNArgs(2), //nolint:mnd
		RunE: func(_ *cobra.Command, args []string) error {
			cm, ok := methodNames[method]
			if !ok {
				return fmt.Errorf("heptazip: unknown compression method %q", method)
			}

			out, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("heptazip: error creating archive: %w", err)
			}
			defer out.Close()

			opts := heptazip.WriteOptions{
				Method:   cm,
				Level:    level,
				Password: password,
			}

			if password != "" {
				opts.EncryptData = true
				opts.EncryptHeader = encrypt
			}

			if solid {
				opts.Solid = heptazip.SolidOn
			}

			zw, err := heptazip.NewWriter(out, opts)
			if err != nil {
				return fmt.Errorf("heptazip: error creating writer: %w", err)
			}

			for _, root := range args[1:] {
				if err := addPath(zw, root); err != nil {
					return err
				}
			}

			if err := zw.Close(); err != nil {
				return fmt.Errorf("heptazip: error closing archive: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "encryption password")
	cmd.Flags().StringVarP(&method, "method", "m", "lzma2", "compression method: copy|lzma|lzma2|deflate|bzip2|lz4|zstd|brotli")
	cmd.Flags().IntVarP(&level, "level", "l", 6, "compression level") //nolint:mnd
	cmd.Flags().BoolVar(&solid, "solid", false, "pack all entries into a single solid block")
	cmd.Flags().BoolVar(&encrypt, "encrypt-header", false, "also encrypt the archive's file listing")

	return cmd
}

func addPath(zw *heptazip.Writer, root string) error {
	info, err := os.Lstat(root)
	if err != nil {
		return fmt.Errorf("heptazip: error statting %s: %w", root, err)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(root)
		if err != nil {
			return fmt.Errorf("heptazip: error reading symlink %s: %w", root, err)
		}

		return zw.AddSymlink(filepath.ToSlash(root), target, info.ModTime())
	}

	if info.IsDir() {
		if err := zw.AddDir(filepath.ToSlash(root)+"/", info.ModTime()); err != nil {
			return err
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			return fmt.Errorf("heptazip: error reading directory %s: %w", root, err)
		}

		for _, entry := range entries {
			if err := addPath(zw, filepath.Join(root, entry.Name())); err != nil {
				return err
			}
		}

		return nil
	}

	f, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("heptazip: error opening %s: %w", root, err)
	}
	defer f.Close()

	return zw.AddFile(filepath.ToSlash(root), info.Mode(), info.ModTime(), f)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbctl/internal/backend"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the documents in the active index",
	Long: `Files fetches per-file metadata for the active index. Files whose page
count grew since the previous fetch in this run are marked. Some
deployments do not expose file listing; those report a degraded-mode
notice instead of an error.`,
	RunE: runFiles,
}

func runFiles(cmd *cobra.Command, args []string) error {
	sess, _, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ix, err := targetIndex(cmd.Context(), cmd, sess)
	if err != nil {
		return err
	}

	if err := sess.Ingest.RefreshFiles(cmd.Context()); err != nil {
		if errors.Is(err, backend.ErrMissingCapability) {
			fmt.Fprintln(os.Stderr, sess.Ingest.Status())
			return nil
		}
		return err
	}

	files := sess.Ingest.Files()
	if len(files) == 0 {
		fmt.Printf("Index %s has no files.\n", ix)
		return nil
	}
	for _, f := range files {
		growing := ""
		if f.Growing {
			growing = "  (processing)"
		}
		fmt.Printf("%-40s %5d pages%s\n", f.Filename, f.TotalPages, growing)
	}
	return nil
}

var uploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload one document into the active index",
	Long: `Upload sends a single file to the active index. Pass --multimodal to
request enhanced processing of embedded images. One upload runs at a
time; the document only becomes searchable after the next indexing run.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	multimodal, _ := cmd.Flags().GetBool("multimodal")

	sess, _, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ix, err := targetIndex(cmd.Context(), cmd, sess)
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer f.Close()

	result, err := sess.Ingest.Upload(cmd.Context(), filepath.Base(args[0]), f, multimodal)
	if err != nil {
		return err
	}

	if result.Pages > 0 {
		fmt.Printf("%s: %s (%d pages) -> %s\n", filepath.Base(args[0]), result.Message, result.Pages, ix)
	} else {
		fmt.Printf("%s: %s -> %s\n", filepath.Base(args[0]), result.Message, ix)
	}
	return nil
}

func init() {
	indexFlags(filesCmd)
	indexFlags(uploadCmd)
	uploadCmd.Flags().Bool("multimodal", false, "request enhanced processing of embedded images")

	rootCmd.AddCommand(filesCmd, uploadCmd)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/kbctl/pkg/types"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Start and observe the background indexing job",
	Long: `Index controls the service's asynchronous indexing job for the active
index. "start" fires the job and returns; "status" reports the current
job state; "run" starts the job and polls until it completes or fails.`,
}

// --- start subcommand ---

var indexStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the indexing job without waiting for it",
	RunE:  runIndexStart,
}

func runIndexStart(cmd *cobra.Command, args []string) error {
	sess, _, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ix, err := targetIndex(cmd.Context(), cmd, sess)
	if err != nil {
		return err
	}

	// Fire the job without a local polling loop; the job keeps running
	// server-side after kbctl exits.
	msg, err := sess.Service.StartIndexing(cmd.Context(), ix)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "indexing started"
	}
	fmt.Printf("%s: %s. Check progress with `kbctl index status`.\n", ix, msg)
	return nil
}

// --- status subcommand ---

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the indexing job state for the active index",
	RunE:  runIndexStatus,
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	sess, _, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ix, err := targetIndex(cmd.Context(), cmd, sess)
	if err != nil {
		return err
	}

	// One direct fetch; no polling loop for a one-shot status report.
	snap, err := sess.Service.JobStatus(cmd.Context(), ix)
	if err != nil {
		return err
	}
	printSnapshot(ix, snap)
	return nil
}

// --- run subcommand ---

var indexRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the indexing job and poll until it finishes",
	RunE:  runIndexRun,
}

func runIndexRun(cmd *cobra.Command, args []string) error {
	sess, cfg, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ix, err := targetIndex(cmd.Context(), cmd, sess)
	if err != nil {
		return err
	}

	if err := sess.Poller.Start(cmd.Context()); err != nil {
		return err
	}
	fmt.Printf("Indexing %s...\n", ix)

	done := make(chan types.JobSnapshot, 1)
	go func() { done <- sess.Poller.Wait(cmd.Context()) }()

	ticker := time.NewTicker(cfg.Index.PollInterval)
	defer ticker.Stop()

	var last types.JobSnapshot
	for {
		select {
		case snap := <-done:
			printSnapshot(ix, snap)
			if snap.State == types.JobFailed {
				return fmt.Errorf("indexing failed for %s", ix)
			}
			if snap.State != types.JobCompleted {
				return fmt.Errorf("indexing did not finish: %s", snap.Message)
			}
			return nil
		case <-ticker.C:
			snap := sess.Poller.Snapshot()
			if snap != last {
				fmt.Printf("  %3d%%  %s\n", snap.Progress, snap.Message)
				last = snap
			}
		}
	}
}

func printSnapshot(ix types.Index, snap types.JobSnapshot) {
	switch snap.State {
	case types.JobCompleted:
		fmt.Printf("%s: indexing completed (100%%)\n", ix)
	case types.JobFailed:
		fmt.Printf("%s: %s\n", ix, snap.Message)
	case types.JobInProgress:
		fmt.Printf("%s: indexing in progress (%d%%)\n", ix, snap.Progress)
	default:
		fmt.Printf("%s: indexing has not started\n", ix)
	}
}

func init() {
	indexFlags(indexStartCmd)
	indexFlags(indexStatusCmd)
	indexFlags(indexRunCmd)

	indexCmd.AddCommand(indexStartCmd, indexStatusCmd, indexRunCmd)
	rootCmd.AddCommand(indexCmd)
}

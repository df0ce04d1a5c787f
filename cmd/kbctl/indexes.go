// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/kbctl/pkg/types"
)

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "List, create, select, and delete knowledge indexes",
}

// --- list subcommand ---

var indexesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexes known to the service",
	RunE:  runIndexesList,
}

func runIndexesList(cmd *cobra.Command, args []string) error {
	sess, _, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := sess.Refresh(cmd.Context()); err != nil {
		return err
	}

	list := sess.Registry.List()
	active, haveActive := sess.Active()

	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		out, err := yaml.Marshal(list)
		if err != nil {
			return fmt.Errorf("encoding index list: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	if len(list) == 0 {
		fmt.Println("No indexes. Create one with `kbctl indexes create <name>`.")
		return nil
	}
	for _, ix := range list {
		marker := " "
		if haveActive && ix.Equal(active) {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, ix)
	}
	if msg := sess.Registry.ErrorMessage(); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	return nil
}

// --- create subcommand ---

var indexesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new index",
	Long: `Create asks the service to create a named index. Names are lowercased
and limited to ` + fmt.Sprint(types.MaxIndexNameLen) + ` characters, and at most 7 indexes may exist; both
limits are enforced before any request is sent.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexesCreate,
}

func runIndexesCreate(cmd *cobra.Command, args []string) error {
	restricted, _ := cmd.Flags().GetBool("restricted")

	sess, _, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := sess.Refresh(cmd.Context()); err != nil {
		return err
	}
	if err := sess.Registry.Create(cmd.Context(), args[0], restricted); err != nil {
		return err
	}
	fmt.Printf("Created index %s\n", types.Index{Name: types.NormalizeName(args[0]), Restricted: restricted})
	return nil
}

// --- delete subcommand ---

var indexesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete an index and everything in it",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexesDelete,
}

func runIndexesDelete(cmd *cobra.Command, args []string) error {
	restricted, _ := cmd.Flags().GetBool("restricted")
	assumeYes, _ := cmd.Flags().GetBool("yes")

	sess, _, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := sess.Refresh(cmd.Context()); err != nil {
		return err
	}

	ix := types.Index{Name: types.NormalizeName(args[0]), Restricted: restricted}
	confirm := confirmOnTerminal
	if assumeYes {
		confirm = nil
	}
	if err := sess.Registry.Delete(cmd.Context(), ix, confirm); err != nil {
		return err
	}
	fmt.Printf("Deleted index %s\n", ix)
	return nil
}

// confirmOnTerminal asks the user before a destructive operation.
func confirmOnTerminal(ix types.Index) bool {
	fmt.Printf("Delete index %s and all of its documents? [y/N] ", ix)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// --- select subcommand ---

var indexesSelectCmd = &cobra.Command{
	Use:   "select <name>",
	Short: "Make an index the active one for uploads and indexing",
	Long: `Select persists the choice; later commands restore it automatically.
The same name may exist in a restricted and an unrestricted variant, so
pass --restricted to pick the restricted one.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexesSelect,
}

func runIndexesSelect(cmd *cobra.Command, args []string) error {
	restricted, _ := cmd.Flags().GetBool("restricted")

	sess, _, cleanup, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := sess.Refresh(cmd.Context()); err != nil {
		return err
	}

	ix := types.Index{Name: types.NormalizeName(args[0]), Restricted: restricted}
	found := false
	for _, entry := range sess.Registry.List() {
		if entry.Equal(ix) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("index %s does not exist", ix)
	}

	if err := sess.Select(ix); err != nil {
		return err
	}
	fmt.Printf("Active index is now %s\n", ix)
	return nil
}

func init() {
	indexesCreateCmd.Flags().Bool("restricted", false, "create the index with restricted access")
	indexesDeleteCmd.Flags().Bool("restricted", false, "the name refers to the restricted variant")
	indexesDeleteCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	indexesSelectCmd.Flags().Bool("restricted", false, "the name refers to the restricted variant")
	indexesListCmd.Flags().Bool("yaml", false, "print the list as YAML")

	indexesCmd.AddCommand(indexesListCmd, indexesCreateCmd, indexesDeleteCmd, indexesSelectCmd)
	rootCmd.AddCommand(indexesCmd)
}

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/KaramelBytes/statloom-cli/internal/workspace"
	"github.com/spf13/cobra"
)

var wsDescription string

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage report workspaces",
}

var workspaceInitCmd = &cobra.Command{
	Use:   "init <name|dir>",
	Short: "Initialize a new workspace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveWorkspaceDir(args[0])
		if err != nil {
			return err
		}
		// Refuse to initialize inside a non-empty directory that is not a workspace.
		if entries, err := os.ReadDir(dir); err == nil && len(entries) > 0 {
			if _, err := os.Stat(filepath.Join(dir, workspace.FileName)); err != nil {
				return fmt.Errorf("directory %s already exists and is not empty; refusing to initialize workspace", dir)
			}
		}
		ws, err := workspace.Init(dir, filepath.Base(args[0]), wsDescription)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Workspace initialized: %s\n", ws.RootDir())
		return nil
	},
}

var workspaceListCmd = &cobra.Command{
	Use:   "list [name|dir]",
	Short: "List workspaces, or the reports stored in one",
	Long: `Without an argument, lists the reports of the workspace containing the current
directory, or every workspace under workspace_dir when there is none.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ws *workspace.Workspace
		if len(args) == 1 {
			dir, err := resolveWorkspaceDir(args[0])
			if err != nil {
				return err
			}
			if ws, err = workspace.Open(dir); err != nil {
				return err
			}
		} else if found, err := workspace.Find(""); err == nil {
			ws = found
		} else {
			return listAllWorkspaces(cmd)
		}
		out := cmd.OutOrStdout()
		entries := ws.List()
		if len(entries) == 0 {
			fmt.Fprintln(out, "(no reports)")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(out, "- %s: %s [%s, %d sections] %s (%s)\n", e.ID, e.Title, e.Format, e.Sections, e.File, e.Source)
		}
		return nil
	},
}

func listAllWorkspaces(cmd *cobra.Command) error {
	root, err := workspacesRoot()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "(no workspaces)")
			return nil
		}
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(root, e.Name(), workspace.FileName)); err == nil {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "(no workspaces)")
		return nil
	}
	sort.Strings(names)
	for _, n := range names {
		ws, err := workspace.Open(filepath.Join(root, n))
		if err != nil {
			fmt.Fprintf(out, "- %s (unreadable: %v)\n", n, err)
			continue
		}
		fmt.Fprintf(out, "- %s: %d reports\n", n, len(ws.Entries))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(workspaceCmd)
	workspaceCmd.AddCommand(workspaceInitCmd)
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceInitCmd.Flags().StringVarP(&wsDescription, "desc", "d", "", "workspace description")
}

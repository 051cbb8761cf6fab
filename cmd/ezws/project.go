package main

import (
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var exportOut string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Save, open and list workspace projects",
}

var projectSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the workspace as a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sess.SaveProject(cmd.Context(), args[0])
	},
}

var projectOpenCmd = &cobra.Command{
	Use:   "open <name>",
	Short: "Replace the workspace with a saved project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sess.OpenProject(cmd.Context(), args[0])
	},
}

var projectCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Clear the workspace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return sess.CloseProject(cmd.Context())
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		index := sess.Projects()
		names := make([]string, 0, len(index))
		for name := range index {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			e := index[name]
			printf(cmd, "%-24s %s  %s\n", name, time.UnixMilli(e.LastModified).Format(time.DateTime), e.RootPath)
		}
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a saved project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sess.DeleteProject(cmd.Context(), args[0])
	},
}

var projectExportCmd = &cobra.Command{
	Use:   "export <name>",
	Short: "Write the workspace to a zip archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := exportOut
		if out == "" {
			out = args[0] + ".zip"
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := sess.ExportProject(cmd.Context(), f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		printf(cmd, "exported %s\n", out)
		return nil
	},
}

func init() {
	projectExportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "Archive path (default <name>.zip)")

	projectCmd.AddCommand(projectSaveCmd, projectOpenCmd, projectCloseCmd, projectListCmd, projectRmCmd, projectExportCmd)
	rootCmd.AddCommand(projectCmd)
}

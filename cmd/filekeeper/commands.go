package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ajaxzhan/filekeeper/internal/service"
)

var createFileCmd = &cobra.Command{
	Use:   "create-file <path> <content>",
	Short: "Create a file and record it in the index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			if err := fsys.CreateFile(ctx, args[0], []byte(args[1]), actingUser()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "File created: %s", args[0])
			return nil
		})
	},
}

var readFileCmd = &cobra.Command{
	Use:   "read-file <path>",
	Short: "Print the content of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			data, err := fsys.ReadFile(ctx, args[0], actingUser())
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		})
	},
}

var writeFileCmd = &cobra.Command{
	Use:   "write-file <path> <content>",
	Short: "Replace the content of a tracked file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			if err := fsys.WriteFile(ctx, args[0], []byte(args[1]), actingUser()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "File written: %s", args[0])
			return nil
		})
	},
}

var deleteFileCmd = &cobra.Command{
	Use:   "delete-file <path>",
	Short: "Delete a tracked file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			if err := fsys.DeleteFile(ctx, args[0], actingUser()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "File deleted: %s", args[0])
			return nil
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory and record it in the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			if err := fsys.CreateDirectory(ctx, args[0], actingUser()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Directory created: %s", args[0])
			return nil
		})
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <path>",
	Short: "Delete an empty tracked directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			if err := fsys.DeleteDirectory(ctx, args[0], actingUser()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Directory deleted: %s", args[0])
			return nil
		})
	},
}

var chmodCmd = &cobra.Command{
	Use:   "chmod <mode> <path>",
	Short: "Change permissions using an octal mode such as 644",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := service.ParseMode(args[0])
		if err != nil {
			return err
		}
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			if err := fsys.ChangePermission(ctx, args[1], mode, actingUser()); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "Permissions of %s changed to %s", args[1], service.FlagsFromMode(mode))
			return nil
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the entries of a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) == 1 {
			path = args[0]
		}
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			names, err := fsys.ListDirectory(ctx, path, actingUser())
			if err != nil {
				return err
			}
			renderListing(cmd.OutOrStdout(), names)
			return nil
		})
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Display every index entry with its size and permissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			views, err := fsys.DisplayIndex(ctx, actingUser())
			if err != nil {
				return err
			}
			return renderIndex(cmd.OutOrStdout(), views)
		})
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive menu",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFileSystem(cmd, func(ctx context.Context, fsys service.FileSystem) error {
			return newShell(fsys, actingUser(), cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
		})
	},
}

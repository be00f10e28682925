package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ajaxzhan/filekeeper/internal/service"
)

const (
	exitChoice = "51"

	// maxLine bounds a single answer, which is how file content is entered.
	maxLine = 16 * 1024 * 1024
)

var errExitRequested = errors.New("exit requested")

var menu = []string{
	"1. Create File",
	"2. Read File",
	"3. Write File",
	"4. Delete File",
	"5. Create Directory",
	"6. Delete Directory",
	"7. List Files in Directory",
	"8. Display Index",
	"9. Change Permissions",
	exitChoice + ". Exit",
}

// shell is the interactive numbered menu. Every action runs as one user.
type shell struct {
	fsys service.FileSystem
	user string
	in   *bufio.Scanner
	out  io.Writer
}

func newShell(fsys service.FileSystem, user string, in io.Reader, out io.Writer) *shell {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &shell{
		fsys: fsys,
		user: user,
		in:   scanner,
		out:  out,
	}
}

// run shows the menu until the exit choice or end of input. Every
// mutation is already persisted, so leaving needs no final save. A read
// error ends the session and is returned.
func (s *shell) run(ctx context.Context) error {
	renderBanner(s.out)
	fmt.Fprintf(s.out, "Acting as %s\n", s.user)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintln(s.out, strings.Repeat("-", 32))
		for _, line := range menu {
			fmt.Fprintln(s.out, line)
		}

		choice, err := s.prompt("Enter your choice: ")
		if err == nil {
			err = s.dispatch(ctx, choice)
		}
		switch {
		case err == nil:
		case errors.Is(err, errExitRequested), errors.Is(err, io.EOF):
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		case s.in.Err() != nil:
			return fmt.Errorf("failed to read input: %w", err)
		default:
			printError(s.out, err)
		}
	}
}

func (s *shell) dispatch(ctx context.Context, choice string) error {
	switch choice {
	case "1":
		path, content, err := s.ask2("Enter file path: ", "Enter file content: ")
		if err != nil {
			return err
		}
		if err := s.fsys.CreateFile(ctx, path, []byte(content), s.user); err != nil {
			return err
		}
		printSuccess(s.out, "File created: %s", path)
	case "2":
		path, err := s.prompt("Enter file path to read: ")
		if err != nil {
			return err
		}
		data, err := s.fsys.ReadFile(ctx, path, s.user)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, "File content:")
		fmt.Fprintln(s.out, string(data))
	case "3":
		path, content, err := s.ask2("Enter file path to write: ", "Enter new file content: ")
		if err != nil {
			return err
		}
		if err := s.fsys.WriteFile(ctx, path, []byte(content), s.user); err != nil {
			return err
		}
		printSuccess(s.out, "File written: %s", path)
	case "4":
		path, err := s.prompt("Enter file path to delete: ")
		if err != nil {
			return err
		}
		if err := s.fsys.DeleteFile(ctx, path, s.user); err != nil {
			return err
		}
		printSuccess(s.out, "File deleted: %s", path)
	case "5":
		path, err := s.prompt("Enter directory path to create: ")
		if err != nil {
			return err
		}
		if err := s.fsys.CreateDirectory(ctx, path, s.user); err != nil {
			return err
		}
		printSuccess(s.out, "Directory created: %s", path)
	case "6":
		path, err := s.prompt("Enter directory path to delete: ")
		if err != nil {
			return err
		}
		if err := s.fsys.DeleteDirectory(ctx, path, s.user); err != nil {
			return err
		}
		printSuccess(s.out, "Directory deleted: %s", path)
	case "7":
		path, err := s.prompt("Enter directory path to list: ")
		if err != nil {
			return err
		}
		names, err := s.fsys.ListDirectory(ctx, path, s.user)
		if err != nil {
			return err
		}
		renderListing(s.out, names)
	case "8":
		views, err := s.fsys.DisplayIndex(ctx, s.user)
		if err != nil {
			return err
		}
		return renderIndex(s.out, views)
	case "9":
		path, raw, err := s.ask2("Enter file path: ", "Enter new mode (e.g., 755): ")
		if err != nil {
			return err
		}
		mode, err := service.ParseMode(raw)
		if err != nil {
			return err
		}
		if err := s.fsys.ChangePermission(ctx, path, mode, s.user); err != nil {
			return err
		}
		printSuccess(s.out, "Permissions of %s changed to %s", path, service.FlagsFromMode(mode))
	case exitChoice:
		return errExitRequested
	default:
		fmt.Fprintln(s.out, "Invalid choice. Please try again.")
	}
	return nil
}

// prompt reads one trimmed line. At end of input it returns io.EOF; a
// failed read, such as a line over maxLine, returns the scanner error.
func (s *shell) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

// ask2 prompts for two answers in order.
func (s *shell) ask2(first, second string) (string, string, error) {
	a, err := s.prompt(first)
	if err != nil {
		return "", "", err
	}
	b, err := s.prompt(second)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	successColor = color.New(color.FgGreen)
	headerColor  = color.New(color.FgCyan, color.Bold)
	dirColor     = color.New(color.FgBlue, color.Bold)

	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 3)
	subtitleStyle = lipgloss.NewStyle().Faint(true)
)

func renderBanner(w io.Writer) {
	title := bannerStyle.Render("filekeeper")
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, title, subtitleStyle.Render("files with an out-of-band permission index")))
}

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, errorColor.Sprint("Error: ")+err.Error())
}

// renderListing prints one name per line.
func renderListing(w io.Writer, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	for _, name := range names {
		fmt.Fprintln(w, name)
	}
}

// renderIndex prints the index as an aligned table: path, type, size,
// last modified, permissions and owner.
func renderIndex(w io.Writer, views []types.EntryView) error {
	if len(views) == 0 {
		fmt.Fprintln(w, "Index is empty.")
		return nil
	}

	headerColor.Fprintf(w, "Index (%d entries)\n", len(views))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tTYPE\tSIZE\tLAST MODIFIED\tPERMISSIONS\tOWNER")
	for _, v := range views {
		path := v.Path
		if v.IsDir() {
			path = dirColor.Sprint(v.Path)
		}
		modified := "N/A"
		if !v.LastModified.IsZero() {
			modified = v.LastModified.Format(timeLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			path, v.Type.Label(), v.SizeString(), modified, v.Permissions, v.Owner)
	}
	return tw.Flush()
}

// package formatter renders API resources for terminal output (tables,
// JSON, Markdown).
package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/quietloop/foliox/internal/services"
)

// Format identifies a supported output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat validates a user-supplied format name.
// Empty input defaults to table output.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// IsTerminal reports whether the writer is an interactive terminal.
// Non-terminal table output falls back to JSON so piped output stays parseable.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ResolveFormat picks the effective format for a writer: table output on a
// pipe degrades to JSON, explicit json/markdown are honored everywhere.
func ResolveFormat(f Format, w io.Writer) Format {
	if f == FormatTable && !IsTerminal(w) {
		return FormatJSON
	}
	return f
}

// WriteProjects renders a project list in the requested format.
func WriteProjects(w io.Writer, projects []services.Project, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, projects)
	case FormatMarkdown:
		fmt.Fprintln(w, "| Title | Owner | Views | Likes | Updated |")
		fmt.Fprintln(w, "| --- | --- | ---: | ---: | --- |")
		for _, p := range projects {
			fmt.Fprintf(w, "| %s | @%s | %d | %d | %s |\n",
				p.Title, p.OwnerHandle, p.ViewCount, p.LikeCount, formatTime(p.UpdatedAt))
		}
		return nil
	case FormatTable:
		rows := make([][]string, 0, len(projects))
		for _, p := range projects {
			rows = append(rows, []string{
				p.ID, p.Title, "@" + p.OwnerHandle,
				fmt.Sprintf("%d", p.ViewCount), fmt.Sprintf("%d", p.LikeCount),
				formatTime(p.UpdatedAt),
			})
		}
		return writeTable(w,
			[]string{"ID", "Title", "Owner", "Views", "Likes", "Updated"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft})
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteClips renders a clip list in the requested format.
func WriteClips(w io.Writer, clips []services.Clip, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, clips)
	case FormatMarkdown:
		fmt.Fprintln(w, "| Title | Status | Duration | URL |")
		fmt.Fprintln(w, "| --- | --- | ---: | --- |")
		for _, c := range clips {
			fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
				c.Title, c.Status, formatDuration(c.DurationMS), c.URL)
		}
		return nil
	case FormatTable:
		rows := make([][]string, 0, len(clips))
		for _, c := range clips {
			rows = append(rows, []string{
				c.ID, c.Title, c.Status, formatDuration(c.DurationMS), formatTime(c.CreatedAt),
			})
		}
		return writeTable(w,
			[]string{"ID", "Title", "Status", "Duration", "Created"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteProfile renders a single profile in the requested format.
func WriteProfile(w io.Writer, profile *services.Profile, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, profile)
	case FormatMarkdown:
		fmt.Fprintf(w, "# %s (@%s)\n\n", profile.DisplayName, profile.Handle)
		if profile.Bio != "" {
			fmt.Fprintf(w, "%s\n\n", profile.Bio)
		}
		fmt.Fprintf(w, "%d followers | %d projects\n", profile.Followers, profile.ProjectsNum)
		return nil
	case FormatTable:
		rows := [][]string{
			{"Handle", "@" + profile.Handle},
			{"Name", profile.DisplayName},
			{"Followers", fmt.Sprintf("%d", profile.Followers)},
			{"Projects", fmt.Sprintf("%d", profile.ProjectsNum)},
		}
		if profile.Bio != "" {
			rows = append(rows, []string{"Bio", profile.Bio})
		}
		return writeTable(w, []string{"Field", "Value"}, rows, nil)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteJSON pretty-prints any value as JSON. Used by the raw api commands.
func WriteJSON(w io.Writer, v any) error {
	return writeJSON(w, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func writeTable(w io.Writer, headers []string, rows [][]string, aligns []columnAlignment) error {
	columns := len(headers)
	if columns == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	tw.Render()
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatDuration(ms int) string {
	d := time.Duration(ms) * time.Millisecond
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", mins, secs)
}

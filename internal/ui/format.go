package ui

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"hubstage/internal/output"
	"hubstage/internal/transform"
	"hubstage/pkg/errors"
)

var (
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ColorSuccess = colorFunc(color.FgGreen)
	ColorError   = colorFunc(color.FgRed)
	ColorWarning = colorFunc(color.FgYellow)
	ColorInfo    = colorFunc(color.FgCyan)
	ColorBold    = colorFunc(color.Bold)
	ColorDim     = colorFunc(color.Faint)
)

// SetColor forces colored output on or off.
func SetColor(enabled bool) {
	supportsColor = enabled
}

// colorFunc returns a function that colors text if supported
func colorFunc(attr color.Attribute) func(string) string {
	c := color.New(attr)
	c.EnableColor()
	return func(text string) string {
		if supportsColor {
			return c.Sprint(text)
		}
		return text
	}
}

// ShowHeader displays a formatted header
func ShowHeader(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", ColorBold(title), strings.Repeat("-", len(title)))
}

// ShowError displays an error with its suggestions
func ShowError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", ColorError("ERROR:"), err.Error())

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && len(appErr.Suggestions) > 0 {
		for _, s := range appErr.Suggestions {
			fmt.Fprintf(w, "  %s %s\n", ColorInfo("TIP:"), s)
		}
		return
	}
	if suggestion := getSuggestion(err.Error()); suggestion != "" {
		fmt.Fprintf(w, "  %s %s\n", ColorInfo("TIP:"), suggestion)
	}
}

// ShowSuccess displays a success message
func ShowSuccess(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorSuccess("SUCCESS:"), message)
}

// ShowWarning displays a warning message
func ShowWarning(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorWarning("WARNING:"), message)
}

// ShowInfo displays an info message
func ShowInfo(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s\n", ColorInfo("INFO:"), message)
}

// RenderAdvisories prints advisories as a table, one row per finding.
func RenderAdvisories(w io.Writer, advs []transform.Advisory) {
	if len(advs) == 0 {
		ShowSuccess(w, "No advisories")
		return
	}

	table := newTable(w, []string{"Object", "Kind", "Column", "Message"})
	for _, a := range advs {
		table.Append([]string{a.Object, ColorWarning(string(a.Kind)), a.Column, a.Message})
	}
	table.Render()
}

// RenderResults prints one row per generated model.
func RenderResults(w io.Writer, results []*transform.Result) {
	table := newTable(w, []string{"Model", "Source", "Columns", "Advisories", "Fingerprint"})
	for _, r := range results {
		advs := fmt.Sprintf("%d", len(r.Advisories))
		if r.HasAdvisories() {
			advs = ColorWarning(advs)
		}
		table.Append([]string{
			r.Model,
			r.Source,
			fmt.Sprintf("%d", len(r.Columns)),
			advs,
			output.FormatFingerprint(r.Fingerprint),
		})
	}
	table.Render()
}

// RenderFiles prints what happened to each written model file.
func RenderFiles(w io.Writer, files []output.FileResult) {
	table := newTable(w, []string{"Model", "File", "Status"})
	for _, f := range files {
		status := string(f.Status)
		switch f.Status {
		case output.StatusCreated:
			status = ColorSuccess(status)
		case output.StatusUpdated:
			status = ColorInfo(status)
		default:
			status = ColorDim(status)
		}
		table.Append([]string{f.Model, f.Path, status})
	}
	table.Render()
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// getSuggestion returns helpful suggestions based on error messages
func getSuggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "authentication failed"):
		return "Check the warehouse username and password in the configuration"
	case strings.Contains(lower, "connection refused"):
		return "Verify the warehouse address and network connectivity"
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "insufficient privileges"):
		return "Ensure the role can read the source schema and create tables in the target schema"
	case strings.Contains(lower, "does not exist"):
		return "Verify the source schema and raw table names"
	default:
		return ""
	}
}

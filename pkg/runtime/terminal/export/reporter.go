package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/flowlog-atlas/pkg/models/domain"
	"github.com/de-tools/flowlog-atlas/pkg/models/store"
	"github.com/fatih/color"
)

type TableConfig struct {
	MaxCellWidth int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		MaxCellWidth: 64,
	}
}

// actionOrder fixes the order of the summary counts.
var actionOrder = []domain.Action{
	domain.ActionEnabled,
	domain.ActionDisabled,
	domain.ActionDeleted,
	domain.ActionUpdated,
	domain.ActionAlreadyEnabled,
	domain.ActionAlreadyDisabled,
	domain.ActionFailed,
}

const tableTemplate = `
{{.Title}}
{{separator}}
{{formatRow .Columns -1}}
{{separator}}
{{range $i, $row := .Rows}}{{formatRow $row $i}}
{{end}}{{separator}}
{{.Footer}}
`

type table struct {
	Title   string
	Columns []string
	Rows    [][]string
	Footer  string

	// paint colors a padded cell of a data row.
	paint func(row, col int, cell string) string
}

type Reporter struct {
	writer io.Writer
	config TableConfig
	color  bool
}

// NewReporter renders to writer. Colors are on only when writing to a
// terminal on stdout.
func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
		color:  writer == os.Stdout && !color.NoColor,
	}
}

func (c *Reporter) WithColor(enabled bool) *Reporter {
	c.color = enabled
	return c
}

// Inventory renders exported records.
func (c *Reporter) Inventory(title string, records []domain.FlowLogRecord) error {
	t := table{
		Title:   title,
		Columns: []string{"Name", "Subscription", "Location", "Resource group", "Target", "Type", "Status", "TA interval"},
		Footer:  fmt.Sprintf("%d flow log(s)", len(records)),
	}
	for _, r := range records {
		t.Rows = append(t.Rows, []string{
			r.Name,
			r.SubscriptionName,
			r.Location,
			r.ResourceGroup,
			r.TargetResourceName,
			string(r.TargetResourceType),
			string(r.Status),
			r.TAInterval.String(),
		})
	}
	t.paint = func(row, col int, cell string) string {
		if col != 6 {
			return cell
		}
		return c.paintStatus(records[row].Status, cell)
	}
	return c.render(t)
}

// Actions renders the outcome of one reconcile pass.
func (c *Reporter) Actions(title string, reports []domain.ActionReport) error {
	t := table{
		Title:   title,
		Columns: []string{"Name", "Subscription", "Location", "Type", "Action", "Detail"},
		Footer:  Summary(reports),
	}
	for _, r := range reports {
		detail := ""
		if r.Failure != nil {
			detail = r.Failure.String()
		}
		t.Rows = append(t.Rows, []string{
			r.Name,
			r.SubscriptionName,
			r.Location,
			string(r.TargetResourceType),
			string(r.Action),
			detail,
		})
	}
	t.paint = func(row, col int, cell string) string {
		if col != 4 && col != 5 {
			return cell
		}
		return c.paintAction(reports[row].Action, cell)
	}
	return c.render(t)
}

// Runs renders the run history.
func (c *Reporter) Runs(title string, runs []store.Run) error {
	t := table{
		Title:   title,
		Columns: []string{"Run", "Started", "Variant", "Mode", "Location", "What if", "Processed", "Failed", "Error"},
		Footer:  fmt.Sprintf("%d run(s)", len(runs)),
	}
	for _, r := range runs {
		errMsg := ""
		if r.Error != nil {
			errMsg = *r.Error
		} else if r.FinishedAt == nil {
			errMsg = "unfinished"
		}
		t.Rows = append(t.Rows, []string{
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Variant,
			r.Mode,
			r.Location,
			fmt.Sprintf("%t", r.WhatIf),
			fmt.Sprintf("%d", r.Processed),
			fmt.Sprintf("%d", r.Failed),
			errMsg,
		})
	}
	t.paint = func(row, col int, cell string) string {
		if col != 8 || runs[row].Error == nil {
			return cell
		}
		return c.paint(color.FgRed, cell)
	}
	return c.render(t)
}

// Summary counts reports per action, e.g. "Enabled: 2, Failed: 1".
func Summary(reports []domain.ActionReport) string {
	if len(reports) == 0 {
		return "No flow logs processed"
	}
	counts := make(map[domain.Action]int, len(actionOrder))
	for _, r := range reports {
		counts[r.Action]++
	}
	var parts []string
	for _, a := range actionOrder {
		if n := counts[a]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", a, n))
		}
	}
	return strings.Join(parts, ", ")
}

func (c *Reporter) render(t table) error {
	widths := make([]int, len(t.Columns))
	measure := func(cells []string) {
		for i, cell := range cells {
			if n := len(c.truncate(cell)); n > widths[i] {
				widths[i] = n
			}
		}
	}
	measure(t.Columns)
	for _, row := range t.Rows {
		measure(row)
	}

	funcMap := template.FuncMap{
		"formatRow": func(cells []string, row int) string {
			var b strings.Builder
			b.WriteString("|")
			for i, cell := range cells {
				padded := fmt.Sprintf(" %-*s ", widths[i], c.truncate(cell))
				if row >= 0 && t.paint != nil {
					padded = t.paint(row, i, padded)
				}
				b.WriteString(padded)
				b.WriteString("|")
			}
			return b.String()
		},
		"separator": func() string {
			var b strings.Builder
			b.WriteString("+")
			for _, w := range widths {
				b.WriteString(strings.Repeat("-", w+2))
				b.WriteString("+")
			}
			return b.String()
		},
	}

	tmpl, err := template.New("table").Funcs(funcMap).Parse(tableTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl.Execute(c.writer, t)
}

func (c *Reporter) truncate(cell string) string {
	limit := c.config.MaxCellWidth
	if limit <= 3 || len(cell) <= limit {
		return cell
	}
	return cell[:limit-3] + "..."
}

func (c *Reporter) paintAction(action domain.Action, cell string) string {
	switch {
	case action == domain.ActionFailed:
		return c.paint(color.FgRed, cell)
	case action.Ignored():
		return c.paint(color.FgYellow, cell)
	default:
		return c.paint(color.FgGreen, cell)
	}
}

func (c *Reporter) paintStatus(status domain.Status, cell string) string {
	switch status {
	case domain.StatusEnabled:
		return c.paint(color.FgGreen, cell)
	case domain.StatusDisabled:
		return c.paint(color.FgYellow, cell)
	default:
		return cell
	}
}

func (c *Reporter) paint(attr color.Attribute, s string) string {
	if !c.color {
		return s
	}
	p := color.New(attr)
	p.EnableColor()
	return p.Sprint(s)
}

package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rbright/inspector/internal/api"
	"github.com/rbright/inspector/internal/capture"
	"github.com/rbright/inspector/internal/hierarchy"
	"github.com/rbright/inspector/internal/wizard"
)

// renderTable draws rows under headers; columns listed in right are right-aligned.
func renderTable(headers []string, rows [][]string, right ...int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		for _, col := range right {
			if col == i {
				align = text.AlignRight
			}
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func renderDevices(devices []capture.InputDevice) string {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted), yesNo(d.Default)})
	}
	return renderTable([]string{"ID", "Description", "State", "Available", "Muted", "Default"}, rows)
}

func renderTrail(trail []api.Folder) string {
	if len(trail) == 0 {
		return "/"
	}
	names := make([]string, 0, len(trail))
	for _, f := range trail {
		names = append(names, f.Name)
	}
	return strings.Join(names, " / ")
}

func renderView(view hierarchy.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", view.Project.Name, view.Project.ID)
	location := renderTrail(view.Trail)
	if view.Folder != nil && len(view.Trail) == 0 {
		location = view.Folder.Name
	}
	fmt.Fprintf(&b, "location: %s\n", location)
	if view.TrailErr != nil {
		fmt.Fprintf(&b, "warning: breadcrumb truncated: %v\n", view.TrailErr)
	}

	folders := make([][]string, 0, len(view.Folders))
	for _, f := range view.Folders {
		count, ok := view.Counts[f.ID]
		folders = append(folders, []string{f.ID, f.Name, countCell(count, ok)})
	}
	b.WriteString("\nFolders\n")
	b.WriteString(renderTable([]string{"ID", "Name", "Assets"}, folders, 2))

	assets := make([][]string, 0, len(view.Assets))
	for _, a := range view.Assets {
		voice := "no"
		if a.VoiceNoteURL != nil {
			voice = "yes"
		}
		assets = append(assets, []string{a.ID, a.Name, strconv.Itoa(len(a.Photos)), voice})
	}
	b.WriteString("\n\nAssets\n")
	b.WriteString(renderTable([]string{"ID", "Name", "Photos", "Voice"}, assets, 2))
	return b.String()
}

func renderDraft(state string, step int, draft wizard.Draft, recording bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "step %d (%s)\n", step, state)
	fmt.Fprintf(&b, "name: %s\n", draft.Name)

	rows := make([][]string, 0, len(draft.Photos))
	for i, p := range draft.Photos {
		rows = append(rows, []string{strconv.Itoa(i + 1), p.MimeType, humanize.Bytes(uint64(p.Size())), p.Source})
	}
	b.WriteString(renderTable([]string{"#", "Type", "Size", "Source"}, rows, 0, 2))
	b.WriteString("\n")

	voice := "none"
	if draft.Voice != nil {
		voice = humanize.Bytes(uint64(draft.Voice.Size()))
	}
	if recording {
		voice = "recording"
	}
	fmt.Fprintf(&b, "voice: %s\n", voice)
	fmt.Fprintf(&b, "transcript: %s\n", draft.TranscribedText)
	fmt.Fprintf(&b, "written: %s\n", draft.WrittenText)
	return b.String()
}

func renderAsset(a api.Asset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", a.Name, a.ID)
	fmt.Fprintf(&b, "photos: %d\n", len(a.Photos))
	voice := "none"
	if a.VoiceNoteURL != nil {
		voice = *a.VoiceNoteURL
	}
	fmt.Fprintf(&b, "voice: %s\n", voice)
	fmt.Fprintf(&b, "transcript: %s\n", a.VoiceToText)
	fmt.Fprintf(&b, "written: %s\n", a.TextDescription)
	if !a.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "created: %s\n", humanize.Time(a.CreatedAt))
	}
	return b.String()
}

func countCell(count int, ok bool) string {
	if !ok {
		return "-"
	}
	return humanize.Comma(int64(count))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

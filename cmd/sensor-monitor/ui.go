package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	// Text Truncation
	EllipsisLength        = 3
	MaxTopicDisplayWidth  = 40
	MaxSourceDisplayWidth = 12
	MinimumPayloadWidth   = 10

	TimestampFormat = "15:04:05.000"

	MaxDisplayedMessages = 1000
)

// latestReadings keeps the newest reading per source and channel in a stable order
type latestReadings struct {
	rows  map[string]MonitorMessage
	order []string
}

func newLatestReadings() *latestReadings {
	return &latestReadings{rows: make(map[string]MonitorMessage)}
}

// update stores msg and reports whether it created a new row
func (l *latestReadings) update(msg MonitorMessage) bool {
	key := msg.Key()
	_, exists := l.rows[key]
	l.rows[key] = msg
	if !exists {
		l.order = append(l.order, key)
		sort.SliceStable(l.order, func(i, j int) bool {
			a, b := l.rows[l.order[i]], l.rows[l.order[j]]
			if a.Source != b.Source {
				return a.Source < b.Source
			}
			return a.Channel < b.Channel
		})
	}
	return !exists
}

func (l *latestReadings) list() []MonitorMessage {
	out := make([]MonitorMessage, 0, len(l.order))
	for _, key := range l.order {
		out = append(out, l.rows[key])
	}
	return out
}

type UI struct {
	app          *tview.Application
	readingsView *tview.Table
	messagesView *tview.TextView
	errorsView   *tview.TextView
	statusView   *tview.TextView
	flex         *tview.Flex
	latest       *latestReadings
	messages     []MonitorMessage // Store raw messages for reformatting
	truncate     bool
}

func NewUI(truncate bool) *UI {
	app := tview.NewApplication()

	readingsView := tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	readingsView.SetBorder(true).SetTitle(" Latest Readings ")

	messagesView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(MaxDisplayedMessages)
	messagesView.SetBorder(true).SetTitle(" Messages ")

	errorsView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(MaxDisplayedMessages)
	errorsView.SetBorder(true).SetTitle(" Connection Status & Errors ")

	statusView := tview.NewTextView().
		SetDynamicColors(true)
	statusView.SetBorder(true).SetTitle(" Status ")

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(readingsView, 0, 2, true).
		AddItem(messagesView, 0, 2, false).
		AddItem(errorsView, 0, 1, false).
		AddItem(statusView, 3, 0, false)

	ui := &UI{
		app:          app,
		readingsView: readingsView,
		messagesView: messagesView,
		errorsView:   errorsView,
		statusView:   statusView,
		flex:         flex,
		latest:       newLatestReadings(),
		truncate:     truncate,
	}
	ui.drawReadingsHeader()
	return ui
}

func (ui *UI) Start(ctx context.Context) error {
	ui.app.SetRoot(ui.flex, true)

	focusOrder := []tview.Primitive{ui.readingsView, ui.messagesView, ui.errorsView}
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEscape:
			ui.app.Stop()
			return nil
		case tcell.KeyTab:
			current := ui.app.GetFocus()
			for i, p := range focusOrder {
				if p == current {
					ui.app.SetFocus(focusOrder[(i+1)%len(focusOrder)])
					return nil
				}
			}
			ui.app.SetFocus(focusOrder[0])
			return nil
		case tcell.KeyCtrlL:
			ui.refreshAll()
			return nil
		}
		return event
	})

	go func() {
		<-ctx.Done()
		ui.app.QueueUpdateDraw(func() {
			ui.app.Stop()
		})
	}()

	return ui.app.Run()
}

func (ui *UI) Stop() {
	go func() {
		time.Sleep(10 * time.Millisecond)
		ui.app.Stop()
	}()
}

func (ui *UI) AddMessage(msg MonitorMessage) {
	ui.app.QueueUpdateDraw(func() {
		ui.messages = append(ui.messages, msg)
		if len(ui.messages) > MaxDisplayedMessages {
			ui.messages = ui.messages[1:]
		}

		if msg.Reading != nil {
			ui.latest.update(msg)
			ui.drawReadings()
		}

		fmt.Fprintf(ui.messagesView, "%s\n", ui.formatMessageForDisplay(msg))
		ui.messagesView.ScrollToEnd()
	})
}

func (ui *UI) AddError(err error) {
	formatted := formatStatusLine(time.Now(), err)
	ui.app.QueueUpdateDraw(func() {
		fmt.Fprint(ui.errorsView, formatted)
		ui.errorsView.ScrollToEnd()
	})
}

func (ui *UI) UpdateStatus(status string) {
	ui.app.QueueUpdateDraw(func() {
		ui.statusView.Clear()
		fmt.Fprintf(ui.statusView, " %s | Press Ctrl+C or Esc to quit | Tab to switch views", status)
	})
}

func (ui *UI) drawReadingsHeader() {
	for col, title := range []string{"Source", "Channel", "Value", "Units", "Updated"} {
		ui.readingsView.SetCell(0, col, tview.NewTableCell(title).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
}

// drawReadings must run on the UI goroutine
func (ui *UI) drawReadings() {
	for i, msg := range ui.latest.list() {
		row := i + 1
		color := tcell.ColorDarkCyan
		if msg.Color != "" {
			color = tcell.GetColor(msg.Color)
		}
		ui.readingsView.SetCell(row, 0, tview.NewTableCell(msg.Source).SetTextColor(color))
		ui.readingsView.SetCell(row, 1, tview.NewTableCell(msg.DisplayChannel).SetExpansion(1))
		ui.readingsView.SetCell(row, 2, tview.NewTableCell(formatValue(msg.Reading.Value)).SetAlign(tview.AlignRight))
		ui.readingsView.SetCell(row, 3, tview.NewTableCell(msg.Reading.Units))
		ui.readingsView.SetCell(row, 4, tview.NewTableCell(msg.Timestamp.Format(TimestampFormat)))
	}
}

func (ui *UI) getTerminalWidth() int {
	if ui.messagesView != nil {
		_, _, width, _ := ui.messagesView.GetInnerRect()
		if width > 10 {
			return width
		}
	}
	return 120
}

func (ui *UI) formatMessageForDisplay(msg MonitorMessage) string {
	sourceColor := "cyan"
	if msg.Color != "" {
		sourceColor = msg.Color
	}

	source, channel := msg.Source, msg.DisplayChannel
	if ui.truncate {
		source = truncateText(source, MaxSourceDisplayWidth)
		channel = truncateText(channel, MaxTopicDisplayWidth)
	}

	prefix := fmt.Sprintf("[yellow]%s[white] [%s]%s[white] [green]%s[white] ",
		msg.Timestamp.Format(TimestampFormat),
		sourceColor,
		tview.Escape(source),
		tview.Escape(channel))

	body := describeMessage(msg)
	if ui.truncate {
		available := ui.getTerminalWidth() - getVisibleLength(prefix)
		if available < MinimumPayloadWidth {
			available = MinimumPayloadWidth
		}
		body = truncateText(body, available)
	}

	if msg.DecodeErr != nil {
		return prefix + "[red]" + tview.Escape(body) + "[white]"
	}
	return prefix + tview.Escape(body)
}

func (ui *UI) refreshAll() {
	ui.app.QueueUpdateDraw(func() {
		ui.drawReadings()
		ui.messagesView.Clear()
		for _, msg := range ui.messages {
			fmt.Fprintf(ui.messagesView, "%s\n", ui.formatMessageForDisplay(msg))
		}
		ui.messagesView.ScrollToEnd()
	})
}

// describeMessage is the text shown after the channel
func describeMessage(msg MonitorMessage) string {
	switch {
	case msg.Reading != nil:
		return msg.Reading.String()
	case msg.DecodeErr != nil:
		return fmt.Sprintf("%s (%v)", msg.Payload, msg.DecodeErr)
	default:
		return msg.Payload
	}
}

func formatValue(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

func formatStatusLine(at time.Time, err error) string {
	errMsg := err.Error()
	color := "red"
	if strings.HasSuffix(errMsg, ": connected") || strings.Contains(errMsg, ": subscribed") {
		color = "green"
	}
	return fmt.Sprintf("[yellow]%s[white] [%s]%s[white]\n", at.Format(TimestampFormat), color, tview.Escape(errMsg))
}

func truncateText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if len(text) <= maxWidth {
		return text
	}
	if maxWidth <= EllipsisLength {
		return text[:maxWidth]
	}
	return text[:maxWidth-EllipsisLength] + "..."
}

// getVisibleLength strips tview color tags
func getVisibleLength(text string) int {
	result := text
	for {
		start := strings.Index(result, "[")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "]")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+1:]
	}
	return len(result)
}

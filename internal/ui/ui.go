package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/SayWess/Musicarr/internal/notify"
)

// activityLines caps the event feed shown under the playlist list.
const activityLines = 8

// Model represents the dashboard state.
type Model struct {
	ctx    context.Context
	client *Client

	width  int
	height int

	playlistList list.Model
	playlists    []PlaylistSummary

	events   <-chan notify.Message
	activity []string
	bar      progress.Model
	percent  float64
	current  string // title of the video currently downloading

	err  error
	help help.Model
	keys keyMap
}

type playlistsFetchedMsg struct {
	playlists []PlaylistSummary
	err       error
}

type connectedMsg struct {
	events <-chan notify.Message
	err    error
}

type eventMsg notify.Message

// statusMsg is a local line for the activity feed, used for the outcome of
// operations the dashboard itself triggered.
type statusMsg string

// feedClosedMsg reports the websocket dropping.
type feedClosedMsg struct{}

// NewModel creates a dashboard model talking to the given API client.
func NewModel(ctx context.Context, client *Client) *Model {
	return &Model{
		ctx:    ctx,
		client: client,
		bar:    progress.New(progress.WithDefaultGradient()),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init fetches the playlist list and opens the event feed.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlaylists(), m.connect())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.playlistList.Width() != 0 {
			m.playlistList.SetSize(msg.Width-4, msg.Height-activityLines-6)
		}
		m.bar.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case playlistsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.playlists = msg.playlists
		items := make([]list.Item, len(msg.playlists))
		for i, pl := range msg.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		m.playlistList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "Tracked Playlists"
		m.playlistList.SetSize(m.width-4, m.height-activityLines-6)
		return m, nil

	case connectedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.events = msg.events
		return m, m.waitForEvent()

	case eventMsg:
		m.apply(notify.Message(msg))
		return m, m.waitForEvent()

	case statusMsg:
		m.log(string(msg))
		return m, nil

	case feedClosedMsg:
		m.log(styles.warn.Render("event feed closed, reconnecting"))
		return m, m.connect()
	}

	if m.playlistList.Width() != 0 {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the playlist list over the live activity feed.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if m.playlistList.Width() == 0 {
		return "Loading playlists..."
	}

	activity := styles.title.Render("Activity")
	for _, line := range m.activity {
		activity += "\n" + line
	}
	if m.current != "" {
		activity += fmt.Sprintf("\n%s\n%s", m.current, m.bar.ViewAs(m.percent))
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n\n%s\n\n%s", m.playlistList.View(), activity, helpView)
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		if pl, ok := m.selected(); ok {
			return m, m.refresh(pl.ID)
		}
	case "d":
		if pl, ok := m.selected(); ok {
			return m, m.download(pl.ID)
		}
	}

	if m.playlistList.Width() != 0 {
		var cmd tea.Cmd
		m.playlistList, cmd = m.playlistList.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) selected() (PlaylistSummary, bool) {
	if m.playlistList.Width() == 0 {
		return PlaylistSummary{}, false
	}
	item, ok := m.playlistList.SelectedItem().(playlistItem)
	if !ok {
		return PlaylistSummary{}, false
	}
	return item.playlist, true
}

// apply folds one server notification into the activity feed.
func (m *Model) apply(msg notify.Message) {
	title, _ := msg["video_title"].(string)

	switch msg["status"] {
	case "started":
		if title != "" {
			m.log(fmt.Sprintf("⇣ %s", title))
		} else {
			m.log("⇣ started")
		}
	case "downloading":
		if pct, ok := msg["progress"].(float64); ok {
			m.current = title
			m.percent = pct / 100
			if stage, ok := msg["download_stage"].(string); ok {
				m.current = fmt.Sprintf("%s (%s)", title, stage)
			}
		}
	case "finished":
		m.current, m.percent = "", 0
		m.log(styles.ok.Render(fmt.Sprintf("✓ %s", title)))
	case "error":
		m.current, m.percent = "", 0
		text, _ := msg["message"].(string)
		m.log(styles.err.Render(fmt.Sprintf("✗ %s %s", title, text)))
	}

	if success, ok := msg["fetch_success"].(bool); ok {
		if success {
			m.log(styles.ok.Render("metadata refreshed"))
		} else {
			m.log(styles.err.Render("metadata refresh failed"))
		}
	}
	if upToDate, ok := msg["up_to_date"].(bool); ok && upToDate {
		m.log("already up to date")
	}
}

func (m *Model) log(line string) {
	m.activity = append(m.activity, line)
	if len(m.activity) > activityLines {
		m.activity = m.activity[len(m.activity)-activityLines:]
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.client.Playlists(m.ctx)
		return playlistsFetchedMsg{playlists: playlists, err: err}
	}
}

func (m *Model) connect() tea.Cmd {
	return func() tea.Msg {
		events, err := m.client.Events(m.ctx)
		return connectedMsg{events: events, err: err}
	}
}

func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.events
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg(msg)
	}
}

func (m *Model) refresh(playlistID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.client.Refresh(m.ctx, playlistID); err != nil {
			return statusMsg(styles.err.Render(err.Error()))
		}
		return statusMsg("refresh requested")
	}
}

func (m *Model) download(playlistID string) tea.Cmd {
	return func() tea.Msg {
		if err := m.client.Download(m.ctx, playlistID); err != nil {
			return statusMsg(styles.err.Render(err.Error()))
		}
		return statusMsg("download requested")
	}
}

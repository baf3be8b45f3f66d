package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/pipeline"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PreviewView ViewState = iota
	ConfirmView
	ResolveView
	ResultView
)

// BuildOutcome is what a completed build hands back to the TUI.
type BuildOutcome struct {
	Report   *models.PipelineReport
	Playlist *models.Playlist
}

// BuildFunc runs the resolution pipeline and playlist creation, streaming
// progress into the channel. The TUI owns the channel lifecycle.
type BuildFunc func(ctx context.Context, progress chan<- pipeline.ProgressUpdate) (*BuildOutcome, error)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	requests     []models.TrackRequest
	build        BuildFunc
	width        int
	height       int
	trackList    list.Model
	progressChan chan pipeline.ProgressUpdate
	progress     pipeline.ProgressUpdate
	outcome      *BuildOutcome
	err          error
	help         help.Model
	keys         keyMap
}

// requestItem wraps [models.TrackRequest] to implement list.Item.
type requestItem struct {
	request models.TrackRequest
}

func (i requestItem) FilterValue() string { return i.request.Title }
func (i requestItem) Title() string       { return i.request.Title }
func (i requestItem) Description() string {
	desc := i.request.Artist
	if i.request.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.request.Album)
	}
	if i.request.Version != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.request.Version)
	}
	return desc
}

type progressUpdateMsg pipeline.ProgressUpdate

type buildCompleteMsg struct {
	outcome *BuildOutcome
	err     error
}

// NewModel creates a new TUI model over a generated track list and the build
// to run once confirmed.
func NewModel(ctx context.Context, requests []models.TrackRequest, build BuildFunc) *Model {
	items := make([]list.Item, len(requests))
	for i, req := range requests {
		items[i] = requestItem{request: req}
	}

	trackList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	trackList.Title = fmt.Sprintf("Generated Tracks (%d)", len(requests))

	return &Model{
		ctx:       ctx,
		view:      PreviewView,
		requests:  requests,
		build:     build,
		trackList: trackList,
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.trackList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PreviewView:
			return m.handlePreviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case progressUpdateMsg:
		m.progress = pipeline.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case buildCompleteMsg:
		m.outcome = msg.outcome
		m.err = msg.err
		m.view = ResultView
		m.progressChan = nil
		return m, nil
	}

	if m.view == PreviewView {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PreviewView:
		return m.renderPreview()
	case ConfirmView:
		return m.renderConfirm()
	case ResolveView:
		return m.renderResolve()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// Outcome exposes the completed build result after the program exits.
func (m *Model) Outcome() (*BuildOutcome, error) {
	return m.outcome, m.err
}

func (m *Model) handlePreviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = PreviewView
		return m, nil
	case "y":
		m.view = ResolveView
		return m, m.startBuild()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) startBuild() tea.Cmd {
	m.progressChan = make(chan pipeline.ProgressUpdate, 50)

	ch := m.progressChan
	go func() {
		outcome, err := m.build(m.ctx, ch)
		m.outcome = outcome
		m.err = err
		close(ch)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return buildCompleteMsg{outcome: m.outcome, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return buildCompleteMsg{outcome: m.outcome, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderPreview() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Resolve %d tracks and build the playlist?", len(m.requests)))

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n\n%s", title, helpView)
}

func (m *Model) renderResolve() string {
	title := styles.title.Render("Building Playlist")

	var phase string
	switch m.progress.Phase {
	case pipeline.VerifyTracks:
		phase = fmt.Sprintf("Verifying tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case pipeline.ResolveTracks:
		phase = fmt.Sprintf("Resolving tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case pipeline.BuildPlaylist:
		phase = "Creating playlist..."
	default:
		phase = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n%s", title, phase, m.progress.Message)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Build failed: %v\n\nPress q to quit", m.err))
	}

	if m.outcome == nil || m.outcome.Report == nil {
		return styles.err.Render("No result available\n\nPress q to quit")
	}

	report := m.outcome.Report
	title := styles.ok.Render("✓ Playlist Built")

	var name string
	if m.outcome.Playlist != nil {
		name = m.outcome.Playlist.Name
	}
	info := fmt.Sprintf("\nPlaylist: %s\nResolved: %d/%d", name, len(report.Resolved), report.Total())

	var failed string
	if len(report.Failed) > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.warn.Render(fmt.Sprintf("Skipped %d tracks:", len(report.Failed))))
		for _, f := range report.Failed {
			failed += fmt.Sprintf("\n  • %s (%s)", f.Request.String(), f.Reason)
		}
	}

	helpKeys := []key.Binding{m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}

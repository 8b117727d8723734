package ui

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/melodymatch/internal/flow"
	"github.com/desertthunder/melodymatch/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	ProfileView
	ErrorView
	SignedOutView
)

// Loader runs the dashboard load and logout. [*flow.Driver] is one.
type Loader interface {
	Load(ctx context.Context, page flow.Page, u *url.URL) flow.Action
	Logout() flow.Action
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	loader    Loader
	width     int
	height    int
	spinner   spinner.Model
	traits    list.Model
	profile   *models.UserProfile
	message   string
	signedOut string
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, loader Loader) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.bar

	return &Model{
		ctx:     ctx,
		view:    LoadingView,
		loader:  loader,
		spinner: s,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the spinner and loads the dashboard.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

// View returns the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return fmt.Sprintf("%s Loading your profile...\n", m.spinner.View())
	case ProfileView:
		return m.renderProfile()
	case ErrorView:
		return m.renderError()
	case SignedOutView:
		return m.renderSignedOut()
	default:
		return ""
	}
}

// State returns the current view.
func (m *Model) State() ViewState {
	return m.view
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == ProfileView {
			m.traits.SetSize(max(msg.Width-4, 0), max(msg.Height-14, 4))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.view != LoadingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgLoaded:
			m.apply(msg.action)
			return m, nil
		case MsgLoggedOut:
			m.profile = nil
			m.view = SignedOutView
			m.signedOut = "Signed out."
			return m, tea.Quit
		}
	}

	if m.view == ProfileView {
		var cmd tea.Cmd
		m.traits, cmd = m.traits.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		if m.view == LoadingView || m.view == SignedOutView {
			return m, nil
		}
		m.view = LoadingView
		m.message = ""
		return m, tea.Batch(m.spinner.Tick, m.load())
	case key.Matches(msg, m.keys.logout):
		if m.view == LoadingView || m.view == SignedOutView {
			return m, nil
		}
		return m, m.logout()
	}

	if m.view == ProfileView {
		var cmd tea.Cmd
		m.traits, cmd = m.traits.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply moves the model to the view matching a terminal dashboard action.
func (m *Model) apply(a flow.Action) {
	switch {
	case a.Kind == flow.Render && a.Profile != nil:
		m.profile = a.Profile
		m.traits = list.New(nil, list.NewDefaultDelegate(), max(m.width-4, 0), max(m.height-14, 4))
		m.traits.Title = "Music personality"
		m.traits.SetShowHelp(false)
		m.traits.SetFilteringEnabled(false)
		if a.Profile.HasMusicData() {
			m.traits.SetItems(traitItems(a.Profile.MusicData.PersonalityVector))
		}
		m.view = ProfileView
	case a.Kind == flow.ShowError:
		m.message = a.Message
		m.view = ErrorView
	default:
		// the dashboard only redirects away when there is no usable session
		m.profile = nil
		m.signedOut = "You are signed out. Run `melodymatch auth login` to sign in."
		m.view = SignedOutView
	}
}

func (m *Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg(m.loader.Load(m.ctx, flow.PageDashboard, nil))
	}
}

func (m *Model) logout() tea.Cmd {
	return func() tea.Msg {
		return loggedOutMsg(m.loader.Logout())
	}
}

func (m *Model) renderProfile() string {
	p := m.profile
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("Welcome, %s", p.DisplayName())))
	b.WriteString("\n")

	var lines []string
	if p.User.Email != "" {
		lines = append(lines, p.User.Email)
	}
	if pr := p.Profile; pr != nil {
		if pr.Bio != "" {
			lines = append(lines, pr.Bio)
		}
		if pr.Age > 0 {
			lines = append(lines, fmt.Sprintf("Age: %d", pr.Age))
		}
		if pr.Location != "" {
			lines = append(lines, fmt.Sprintf("Location: %s", pr.Location))
		}
		if len(pr.Interests) > 0 {
			lines = append(lines, fmt.Sprintf("Interests: %s", strings.Join(pr.Interests, ", ")))
		}
	}
	if len(lines) > 0 {
		b.WriteString(styles.card.Render(strings.Join(lines, "\n")))
		b.WriteString("\n\n")
	}

	if p.HasMusicData() {
		b.WriteString(m.traits.View())
		if p.MusicData.LastUpdated != "" {
			b.WriteString("\n" + styles.help.Render("Last updated "+p.MusicData.LastUpdated))
		}
	} else {
		b.WriteString(styles.help.Render("We are still analysing your listening. Check back soon."))
	}

	b.WriteString("\n\n" + m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderError() string {
	return fmt.Sprintf("%s\n\n%s\n", styles.err.Render(m.message), m.help.ShortHelpView(m.keys.ShortHelp()))
}

func (m *Model) renderSignedOut() string {
	return fmt.Sprintf("%s\n\n%s\n", styles.warn.Render(m.signedOut), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
}

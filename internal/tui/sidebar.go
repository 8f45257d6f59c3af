// Package tui implements the annotation sidebar: a terminal list of
// the open document's annotations with jump, delete, and refresh.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Neroli1108/intellidoc-reader/internal/engine"
	"github.com/Neroli1108/intellidoc-reader/internal/model"
)

// KeyMap defines the sidebar's keyboard shortcuts.
type KeyMap struct {
	Jump    key.Binding
	Delete  key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Jump: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "jump to annotation"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "delete annotation"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// annotationItem adapts one annotation for the bubbles list.
type annotationItem struct {
	annotation   model.Annotation
	categoryName string
}

func (i annotationItem) Title() string {
	icon := map[model.AnnotationType]string{
		model.AnnotationHighlight:     "█",
		model.AnnotationUnderline:     "_",
		model.AnnotationStrikethrough: "–",
		model.AnnotationNote:          "✎",
	}[i.annotation.Type]

	text := strings.ReplaceAll(i.annotation.Text, "\n", " ")
	if len(text) > 60 {
		text = text[:57] + "..."
	}
	return fmt.Sprintf("%s %s", icon, text)
}

func (i annotationItem) Description() string {
	parts := []string{fmt.Sprintf("p.%d", i.annotation.PageNumber)}
	if i.categoryName != "" {
		parts = append(parts, i.categoryName)
	}
	if i.annotation.HasNote() {
		parts = append(parts, "✎ "+i.annotation.Note)
	}
	return strings.Join(parts, " · ")
}

func (i annotationItem) FilterValue() string {
	return i.annotation.Text + " " + i.annotation.Note
}

type annotationsLoadedMsg struct {
	items []list.Item
}

type actionDoneMsg struct {
	err    error
	status string
}

// Sidebar is the bubbletea model for the annotation list.
type Sidebar struct {
	engine *engine.Engine
	ctx    context.Context
	list   list.Model
	keys   KeyMap
	status string
}

// NewSidebar creates the sidebar model over a loaded engine.
func NewSidebar(ctx context.Context, e *engine.Engine) Sidebar {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("#FACC15")).
		BorderLeftForeground(lipgloss.Color("#FACC15"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("#B8960C")).
		BorderLeftForeground(lipgloss.Color("#FACC15"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Annotations"
	l.SetShowStatusBar(false)

	return Sidebar{
		engine: e,
		ctx:    ctx,
		list:   l,
		keys:   DefaultKeyMap(),
	}
}

// Init loads the annotation list.
func (s Sidebar) Init() tea.Cmd {
	return s.loadAnnotations
}

func (s Sidebar) loadAnnotations() tea.Msg {
	names := make(map[string]string)
	for _, cat := range s.engine.Categories() {
		names[cat.ID] = cat.Name
	}

	annotations := s.engine.Annotations()
	items := make([]list.Item, len(annotations))
	for i, a := range annotations {
		items[i] = annotationItem{annotation: a, categoryName: names[a.CategoryID]}
	}
	return annotationsLoadedMsg{items: items}
}

// Update handles key presses and async action results.
func (s Sidebar) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.list.SetSize(msg.Width, msg.Height-2)
		return s, nil

	case annotationsLoadedMsg:
		return s, s.list.SetItems(msg.items)

	case actionDoneMsg:
		if msg.err != nil {
			s.status = "error: " + msg.err.Error()
		} else {
			s.status = msg.status
		}
		return s, s.loadAnnotations

	case tea.KeyMsg:
		// Filtering owns the keyboard while active.
		if s.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, s.keys.Quit):
			return s, tea.Quit

		case key.Matches(msg, s.keys.Jump):
			if item, ok := s.list.SelectedItem().(annotationItem); ok {
				id := item.annotation.ID
				return s, func() tea.Msg {
					return actionDoneMsg{err: s.engine.JumpTo(id), status: "jumped"}
				}
			}

		case key.Matches(msg, s.keys.Delete):
			if item, ok := s.list.SelectedItem().(annotationItem); ok {
				id := item.annotation.ID
				return s, func() tea.Msg {
					return actionDoneMsg{err: s.engine.Delete(s.ctx, id), status: "deleted"}
				}
			}

		case key.Matches(msg, s.keys.Refresh):
			return s, s.loadAnnotations
		}
	}

	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

// View renders the list with a one-line status footer.
func (s Sidebar) View() string {
	footer := ""
	if s.status != "" {
		footer = "\n" + lipgloss.NewStyle().Faint(true).Render(s.status)
	}
	return s.list.View() + footer
}

// Run starts the sidebar program and blocks until the user quits.
func Run(ctx context.Context, e *engine.Engine) error {
	program := tea.NewProgram(NewSidebar(ctx, e), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("sidebar exited: %w", err)
	}
	return nil
}

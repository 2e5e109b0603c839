// Package tui is the interactive terminal chat with the personal agent.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const replyTimeout = 2 * time.Minute

// Sender delivers one user message on a thread and returns the reply.
type Sender interface {
	Send(ctx context.Context, threadID, message string) (string, error)
}

type message struct {
	role    string
	content string
}

type replyMsg struct {
	reply string
	err   error
}

// App is the bubbletea model of a chat session. All turns of one App share
// a single thread id.
type App struct {
	title    string
	threadID string
	sender   Sender

	width  int
	height int

	input   textinput.Model
	spinner spinner.Model

	history      []message
	waiting      bool
	scrollOffset int
	quitting     bool
}

// NewApp creates a chat model titled after the agent.
func NewApp(title, threadID string, sender Sender) *App {
	input := textinput.New()
	input.Placeholder = "Ask me anything..."
	input.CharLimit = 1000
	input.Width = 60
	input.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(styleTitle),
	)

	return &App{
		title:    title,
		threadID: threadID,
		sender:   sender,
		input:    input,
		spinner:  sp,
		width:    80,
		height:   24,
	}
}

// ThreadID returns the thread all turns are sent on.
func (a *App) ThreadID() string { return a.threadID }

func (a *App) Init() tea.Cmd {
	return tea.Batch(tea.WindowSize(), textinput.Blink)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := a.handleKey(msg); handled {
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = max(20, min(70, a.width-8))

	case replyMsg:
		a.waiting = false
		a.scrollOffset = 0
		if msg.err != nil {
			a.history = append(a.history, message{role: "error", content: msg.err.Error()})
		} else {
			a.history = append(a.history, message{role: "assistant", content: msg.reply})
		}
		return a, textinput.Blink

	case spinner.TickMsg:
		if !a.waiting {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	if !a.waiting {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Quit):
		a.quitting = true
		return tea.Quit, true

	case key.Matches(msg, keys.Up):
		a.scrollOffset += 3
		return nil, true

	case key.Matches(msg, keys.Down):
		a.scrollOffset = max(0, a.scrollOffset-3)
		return nil, true

	case key.Matches(msg, keys.Enter):
		if a.waiting {
			return nil, true
		}
		text := strings.TrimSpace(a.input.Value())
		if text == "" {
			return nil, true
		}
		a.input.Reset()
		a.history = append(a.history, message{role: "user", content: text})
		a.waiting = true
		a.scrollOffset = 0
		return tea.Batch(a.spinner.Tick, a.send(text)), true
	}
	return nil, false
}

func (a *App) send(text string) tea.Cmd {
	threadID := a.threadID
	sender := a.sender
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		reply, err := sender.Send(ctx, threadID, text)
		return replyMsg{reply: reply, err: err}
	}
}

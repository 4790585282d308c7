package status

import (
	"errors"
	"io"
	"sort"

	"github.com/GoWebProd/obsidian-jira-master/internal/application"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedBoardModel = errors.New("unexpected final account board model")

// board is the account list in display order with queue and metadata totals.
type board struct {
	statuses []application.AccountStatus
	running  int
	pending  int
	stale    int
}

func newBoard(statuses []application.AccountStatus, opts RenderOptions) board {
	ordered := append([]application.AccountStatus(nil), statuses...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Account, ordered[j].Account
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Alias < b.Alias
	})

	b := board{statuses: ordered}
	for _, status := range ordered {
		b.running += status.Queue.Running
		b.pending += status.Queue.Pending
		if metadataStale(status, opts) {
			b.stale++
		}
	}
	return b
}

type boardBuiltMsg struct {
	board board
}

type boardModel struct {
	statuses []application.AccountStatus
	opts     RenderOptions
	styles   styles
	output   string
}

func (m boardModel) Init() tea.Cmd {
	statuses, opts := m.statuses, m.opts
	return func() tea.Msg {
		return boardBuiltMsg{board: newBoard(statuses, opts)}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	built, ok := msg.(boardBuiltMsg)
	if !ok {
		return m, nil
	}
	m.output = renderView(built.board, m.opts, m.styles)
	return m, tea.Quit
}

func (m boardModel) View() string {
	return m.output
}

// Render draws the account board used by `jm account list`.
func Render(statuses []application.AccountStatus, opts RenderOptions) (string, error) {
	p := tea.NewProgram(
		boardModel{statuses: statuses, opts: opts, styles: newStyles()},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	)

	final, err := p.Run()
	if err != nil {
		return "", err
	}

	rendered, ok := final.(boardModel)
	if !ok {
		return "", ErrUnexpectedBoardModel
	}
	return rendered.output, nil
}

package ui

import (
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// TxRow holds per-transaction data needed for interactivity.
type TxRow struct {
	FullHash    string // full 0x... hash, for copy
	ExplorerURL string // "" when the chain has no explorer
}

// chrome is the number of lines the list uses besides table rows.
const chrome = 7

// txListModel is the bubbletea model for the interactive history list.
type txListModel struct {
	title  string
	table  *Table
	txData []TxRow // parallel to table.Rows
	cursor int
	offset int // first visible row
	height int // terminal height; 0 = unknown, show everything
	flash  string

	open func(url string) error
	copy func(text string) error
}

func newTxListModel(title string, table *Table, txData []TxRow) txListModel {
	return txListModel{
		title:  title,
		table:  table,
		txData: txData,
		open:   openBrowser,
		copy:   copyToClipboard,
	}
}

func (m txListModel) Init() tea.Cmd { return nil }

func (m txListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.scroll()

	case tea.KeyMsg:
		m.flash = ""
		last := len(m.table.Rows) - 1
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < last {
				m.cursor++
			}
		case "pgup":
			m.cursor = max(m.cursor-m.pageSize(), 0)
		case "pgdown":
			m.cursor = max(min(m.cursor+m.pageSize(), last), 0)
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = max(last, 0)
		case "o":
			m.flash = m.openSelected()
		case "c":
			m.flash = m.copySelected()
		}
		m.scroll()
	}
	return m, nil
}

func (m txListModel) openSelected() string {
	if m.cursor >= len(m.txData) {
		return ""
	}
	url := m.txData[m.cursor].ExplorerURL
	if url == "" {
		return "No explorer URL available"
	}
	if err := m.open(url); err != nil {
		return "Open failed: " + err.Error()
	}
	return "Opening in browser…"
}

func (m txListModel) copySelected() string {
	if m.cursor >= len(m.txData) {
		return ""
	}
	hash := m.txData[m.cursor].FullHash
	if hash == "" {
		return "No hash available"
	}
	if err := m.copy(hash); err != nil {
		return "Copy failed: " + err.Error()
	}
	return "Copied: " + TruncateAddr(hash)
}

// pageSize is the number of rows that fit on screen.
func (m txListModel) pageSize() int {
	if m.height <= chrome {
		return max(len(m.table.Rows), 1)
	}
	return m.height - chrome
}

// scroll keeps the cursor inside the visible window.
func (m *txListModel) scroll() {
	page := m.pageSize()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+page {
		m.offset = m.cursor - page + 1
	}
}

func (m txListModel) View() string {
	m.table.SelIdx = m.cursor

	var sb strings.Builder
	sb.WriteString(m.title)
	sb.WriteString("\n\n")
	sb.WriteString(m.table.RenderRange(m.offset, m.offset+m.pageSize()))

	sb.WriteString("\n")
	if m.flash != "" {
		sb.WriteString(StyleSuccess.Render("  ✓ " + m.flash))
	} else {
		sb.WriteString(txControls(m.cursor+1, len(m.table.Rows)))
	}
	sb.WriteString("\n")
	return sb.String()
}

func txControls(pos, total int) string {
	sep := StyleMeta.Render("   ")
	var sb strings.Builder
	sb.WriteString(StyleMeta.Render(fmt.Sprintf("%d/%d", pos, total)))
	sb.WriteString(sep)
	sb.WriteString(StyleMeta.Render("[ ↑↓ ] navigate"))
	sb.WriteString(sep)
	sb.WriteString(StyleInfo.Render("[ o ]"))
	sb.WriteString(StyleMeta.Render(" open in explorer"))
	sb.WriteString(sep)
	sb.WriteString(StyleWarning.Render("[ c ]"))
	sb.WriteString(StyleMeta.Render(" copy hash"))
	sb.WriteString(sep)
	sb.WriteString(StyleMeta.Render("[ q ] quit"))
	return sb.String()
}

// RunTxList starts the interactive list on the alt screen and blocks until
// the user quits.
func RunTxList(in io.Reader, out io.Writer, title string, table *Table, txData []TxRow) error {
	p := tea.NewProgram(newTxListModel(title, table, txData),
		tea.WithInput(in), tea.WithOutput(out), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func copyToClipboard(text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "windows":
		cmd = exec.Command("clip")
	default:
		if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	_, _ = io.WriteString(stdin, text)
	stdin.Close()
	return cmd.Wait()
}

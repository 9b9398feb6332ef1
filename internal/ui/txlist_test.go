package ui

import (
	"errors"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listFixture(n int) txListModel {
	tbl := NewTable([]Column{{Title: "Hash", Width: 12}})
	data := make([]TxRow, n)
	for i := range n {
		hash := fmt.Sprintf("0x%064x", i)
		tbl.AddRow(Row{fmt.Sprintf("row-%02d", i)})
		data[i] = TxRow{FullHash: hash, ExplorerURL: "https://bscscan.com/tx/" + hash}
	}
	m := newTxListModel("History", tbl, data)
	m.open = func(string) error { return nil }
	m.copy = func(string) error { return nil }
	return m
}

func press(t *testing.T, m txListModel, keys ...string) txListModel {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "pgdown":
			msg = tea.KeyMsg{Type: tea.KeyPgDown}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(txListModel)
	}
	return m
}

func TestTxListNavigationClamps(t *testing.T) {
	m := listFixture(3)
	m = press(t, m, "up")
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, "down", "j", "down", "down")
	assert.Equal(t, 2, m.cursor)

	m = press(t, m, "k")
	assert.Equal(t, 1, m.cursor)

	m = press(t, m, "G")
	assert.Equal(t, 2, m.cursor)
	m = press(t, m, "g")
	assert.Equal(t, 0, m.cursor)
}

func TestTxListQuit(t *testing.T) {
	m := listFixture(1)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestTxListScrollsWithCursor(t *testing.T) {
	m := listFixture(30)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: chrome + 5})
	m = next.(txListModel)
	assert.Equal(t, 5, m.pageSize())

	m = press(t, m, "pgdown", "pgdown")
	assert.Equal(t, 10, m.cursor)
	assert.Equal(t, 6, m.offset)

	view := m.View()
	assert.Contains(t, view, "row-10")
	assert.NotContains(t, view, "row-05")
	assert.Contains(t, view, "11/30")
}

func TestTxListCopyAndOpen(t *testing.T) {
	m := listFixture(2)
	var copied, opened string
	m.copy = func(s string) error { copied = s; return nil }
	m.open = func(s string) error { opened = s; return nil }

	m = press(t, m, "down", "c")
	assert.Equal(t, m.txData[1].FullHash, copied)
	assert.Contains(t, m.flash, "Copied")
	assert.Contains(t, m.View(), "Copied")

	m = press(t, m, "o")
	assert.Equal(t, m.txData[1].ExplorerURL, opened)

	m = press(t, m, "down")
	assert.Empty(t, m.flash, "flash clears on the next key")
}

func TestTxListCopyFailure(t *testing.T) {
	m := listFixture(1)
	m.copy = func(string) error { return errors.New("no clipboard") }
	m = press(t, m, "c")
	assert.Equal(t, "Copy failed: no clipboard", m.flash)
}

func TestTxListNoExplorer(t *testing.T) {
	m := listFixture(1)
	m.txData[0].ExplorerURL = ""
	m = press(t, m, "o")
	assert.Equal(t, "No explorer URL available", m.flash)
}

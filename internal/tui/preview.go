package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"msarchive/internal/index"
	"msarchive/internal/render"
	"msarchive/internal/search"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	archiveKey string
	msgID      int
	content    string
	hitLine    int
	err        error
}

// loadPreviewCmd returns a tea.Cmd that renders the conversation preview async.
func loadPreviewCmd(db *index.DB, r search.Result, query string, width int) tea.Cmd {
	return func() tea.Msg {
		content, hitLine, err := render.RenderConversation(db, r.ArchiveKey, render.Options{
			HitMsgID:   r.MsgID,
			Context:    -1,
			Width:      width,
			ShowSystem: true,
			Query:      query,
		})
		return previewRenderedMsg{
			archiveKey: r.ArchiveKey,
			msgID:      r.MsgID,
			content:    content,
			hitLine:    hitLine,
			err:        err,
		}
	}
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}

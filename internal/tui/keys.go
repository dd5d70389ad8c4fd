package tui

// Keybinding constants
const (
	KeyTab       = "tab"
	KeyShiftTab  = "shift+tab"
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyLeft      = "left"
	KeyRight     = "right"
	KeyH         = "h"
	KeyL         = "l"
	KeyWeekBack  = "H"
	KeyWeekAhead = "L"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
	KeySettings  = "s"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView() string {
	return StyleHelp.Render("j/k: select | h/l: drag a day | H/L: drag a week | enter: apply | esc: cancel | tab: focus | s: settings | q: quit")
}

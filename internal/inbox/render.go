package inbox

import "github.com/inbox-voice-lab/internal/mailapi"

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Snapshot is what the list view shows.
type Snapshot struct {
	View  mailapi.ListKind
	Page  mailapi.ListPage
	Theme Theme
}

// Renderer presents session changes.
type Renderer interface {
	RenderList(s Snapshot)
	RenderCompose(c Compose)
	Notify(level Level, message string)
	ApplyTheme(t Theme)
}

type nopRenderer struct{}

func (nopRenderer) RenderList(Snapshot)   {}
func (nopRenderer) RenderCompose(Compose) {}
func (nopRenderer) Notify(Level, string)  {}
func (nopRenderer) ApplyTheme(Theme)      {}

package shipwreck

import (
	"context"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Flash levels for banner notifications.
const (
	FlashSuccess  = "success"
	FlashInfo     = "info"
	FlashWarning  = "warning"
	FlashError    = "error"
	FlashCritical = "critical"
)

// Flash is a one-time notification shown in the banner area of the
// browser, typically raised from an error event.
type Flash struct {
	Level   string
	Message string
}

// RenderFlashes renders flashes as banner divs for the #flash
// container.
func RenderFlashes(flashes []Flash) string {
	if len(flashes) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, f := range flashes {
		sb.WriteString(`<div class="banner `)
		sb.WriteString(html.EscapeString(f.Level))
		sb.WriteString(`">`)
		sb.WriteString(html.EscapeString(f.Message))
		sb.WriteString(`</div>`)
	}
	return sb.String()
}

// FlashContainer returns a templ component for the banner container.
// Add it to the layout above the entity view.
func FlashContainer() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div id="flash" class="flash-container"></div>`)
		return err
	})
}

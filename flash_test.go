package shipwreck

import (
	"context"
	"strings"
	"testing"
)

func TestRenderFlashes(t *testing.T) {
	out := RenderFlashes([]Flash{
		{Level: FlashError, Message: "request failed"},
		{Level: FlashCritical, Message: "auth token is no longer valid"},
	})

	if !strings.Contains(out, `<div class="banner error">request failed</div>`) {
		t.Errorf("error banner missing in %q", out)
	}
	if !strings.Contains(out, `<div class="banner critical">`) {
		t.Errorf("critical banner missing in %q", out)
	}
}

func TestRenderFlashesEscapes(t *testing.T) {
	out := RenderFlashes([]Flash{{Level: FlashInfo, Message: "<b>bold</b>"}})
	if strings.Contains(out, "<b>") {
		t.Errorf("unescaped message in %q", out)
	}
}

func TestRenderFlashesEmpty(t *testing.T) {
	if out := RenderFlashes(nil); out != "" {
		t.Errorf("RenderFlashes(nil) = %q, want empty", out)
	}
}

func TestFlashContainer(t *testing.T) {
	var sb strings.Builder
	if err := FlashContainer().Render(context.Background(), &sb); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got, want := sb.String(), `<div id="flash" class="flash-container"></div>`; got != want {
		t.Errorf("FlashContainer() = %q, want %q", got, want)
	}
}

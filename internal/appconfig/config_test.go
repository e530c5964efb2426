package appconfig

import "testing"

func TestDefaultConfigSavedPhrase(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.SavedPhrase(); got != "PRD JSON saved to" {
		t.Fatalf("saved phrase = %q", got)
	}
	cfg.Markers.Saved = "Document written to"
	if got := cfg.SavedPhrase(); got != "Document written to" {
		t.Fatalf("literal marker should be used as phrase, got %q", got)
	}
	cfg.Markers.Saved = `^Saved \S+$`
	if got := cfg.SavedPhrase(); got != "PRD JSON saved to" {
		t.Fatalf("pattern marker should fall back, got %q", got)
	}
}

package catalog_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"postflow/internal/catalog"
	"postflow/internal/queue"
)

func TestDefaultCatalog(t *testing.T) {
	cat := catalog.Default()

	if got := cat.Rotation(); !slices.Equal(got, queue.AllKinds()) {
		t.Fatalf("rotation = %v, want %v", got, queue.AllKinds())
	}
	if len(cat.Signs) != 12 {
		t.Fatalf("expected 12 signs, got %d", len(cat.Signs))
	}
	if len(cat.Themes) != 6 {
		t.Fatalf("expected 6 themes, got %d", len(cat.Themes))
	}
	if !slices.Contains(cat.BaseTags, "#NutriSigno") {
		t.Fatalf("base tags missing #NutriSigno: %v", cat.BaseTags)
	}
}

func TestFindBanned(t *testing.T) {
	cat := catalog.Default()
	tests := []struct {
		text  string
		match string
	}{
		{"A cura definitiva para a ansiedade", "cura"},
		{"Um MILAGRE na sua rotina", "MILAGRE"},
		{"Como perder 5kg em uma semana", "perder 5kg"},
		{"Resultado garantido em dias", "Resultado garantido"},
		{"Faça um detox de 7 dias", "detox de 7 dias"},
		{"Procura equilíbrio no prato", ""},
		{"Pequenos hábitos, sem pressa", ""},
	}
	for _, tt := range tests {
		got, ok := cat.FindBanned(tt.text)
		if tt.match == "" {
			if ok {
				t.Fatalf("FindBanned(%q) = %q, want no match", tt.text, got)
			}
			continue
		}
		if !ok || got != tt.match {
			t.Fatalf("FindBanned(%q) = %q, %v; want %q", tt.text, got, ok, tt.match)
		}
	}
}

func TestApplyReplacements(t *testing.T) {
	cat := catalog.Default()
	got, applied := cat.ApplyReplacements("Uma promessa por dia, sem promessas vazias")
	want := "Uma orientação por dia, sem orientações vazias"
	if got != want {
		t.Fatalf("ApplyReplacements = %q, want %q", got, want)
	}
	if !slices.Equal(applied, []string{"promessa", "promessas"}) {
		t.Fatalf("applied = %v", applied)
	}

	unchanged, applied := cat.ApplyReplacements("nada a trocar")
	if unchanged != "nada a trocar" || len(applied) != 0 {
		t.Fatalf("unexpected replacement: %q %v", unchanged, applied)
	}
}

func TestParseWeightsAndValidation(t *testing.T) {
	cat, err := catalog.Parse([]byte(`
kinds:
  - kind: single-phrase
    weight: 2
  - kind: motivational
themes: [foco]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []queue.Kind{queue.KindSinglePhrase, queue.KindSinglePhrase, queue.KindMotivational}
	if got := cat.Rotation(); !slices.Equal(got, want) {
		t.Fatalf("rotation = %v, want %v", got, want)
	}

	invalid := map[string]string{
		"empty":         "   ",
		"unknown kind":  "kinds:\n  - kind: reel\n",
		"no kinds":      "signs: [Leão]\n",
		"missing signs": "kinds:\n  - kind: sign_carousel\n",
		"bad regexp":    "kinds:\n  - kind: single_phrase\nbanned_phrases: ['(']\n",
		"negative":      "kinds:\n  - kind: single_phrase\n    weight: -1\n",
	}
	for name, payload := range invalid {
		if _, err := catalog.Parse([]byte(payload)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad(t *testing.T) {
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("Load default: %v", err)
	}
	if len(cat.Rotation()) != 6 {
		t.Fatalf("default rotation length = %d", len(cat.Rotation()))
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("kinds:\n  - kind: educational\nthemes: [sono]\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cat, err = catalog.Load(path)
	if err != nil {
		t.Fatalf("Load file: %v", err)
	}
	if got := cat.Rotation(); len(got) != 1 || got[0] != queue.KindEducational {
		t.Fatalf("rotation = %v", got)
	}

	if _, err := catalog.Load(dir); err == nil || !strings.Contains(err.Error(), "directory") {
		t.Fatalf("expected directory error, got %v", err)
	}
	if _, err := catalog.Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

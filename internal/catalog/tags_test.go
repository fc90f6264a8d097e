package catalog_test

import (
	"slices"
	"testing"

	"postflow/internal/catalog"
	"postflow/internal/queue"
)

func TestHashtag(t *testing.T) {
	tests := map[string]string{
		"hidratação":     "#Hidratação",
		"#NutriSigno":    "#NutriSigno",
		"bem estar":      "#BemEstar",
		"single_phrase":  "#SinglePhrase",
		"  #sono  ":      "#Sono",
		"ÁRIES":          "#Áries",
		"auto-cuidado!!": "#AutoCuidado",
		"###":            "",
		"":               "",
	}
	for input, want := range tests {
		if got := catalog.Hashtag(input); got != want {
			t.Fatalf("Hashtag(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestComposeTags(t *testing.T) {
	cat := catalog.Default()

	got := cat.ComposeTags(queue.KindSignCarousel, "Leão", "", "#nutrisigno", "equilíbrio")
	want := []string{"#NutriSigno", "#AstroNutri", "#BemEstar", "#Astrologia", "#Leão", "#Signos", "#Equilíbrio"}
	if !slices.Equal(got, want) {
		t.Fatalf("ComposeTags = %v, want %v", got, want)
	}

	got = cat.ComposeTags(queue.KindEducational, "", "sono")
	if !slices.Contains(got, "#Sono") || !slices.Contains(got, "#NutriçãoDescomplicada") {
		t.Fatalf("ComposeTags = %v", got)
	}
}

func TestKindTagFallsBackToKindName(t *testing.T) {
	cat, err := catalog.Parse([]byte("kinds:\n  - kind: single_phrase\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cat.KindTag(queue.KindSinglePhrase); got != "#SinglePhrase" {
		t.Fatalf("KindTag = %q", got)
	}
}

func TestDedupeTags(t *testing.T) {
	got := catalog.DedupeTags([]string{"#Foco", "foco", "", "#FOCO", "energia"})
	want := []string{"#Foco", "#Energia"}
	if !slices.Equal(got, want) {
		t.Fatalf("DedupeTags = %v, want %v", got, want)
	}
}

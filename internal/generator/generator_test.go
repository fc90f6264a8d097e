package generator_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"postflow/internal/catalog"
	"postflow/internal/config"
	"postflow/internal/generator"
	"postflow/internal/queue"
	"postflow/internal/services"
	"postflow/internal/stageexec"
	"postflow/internal/testsupport"
)

func TestTemplateBackendCoversEveryKind(t *testing.T) {
	cat := catalog.Default()
	backend := generator.TemplateBackend{}
	for _, kind := range queue.AllKinds() {
		item := &queue.Item{Kind: kind}
		if kind.UsesSign() {
			item.Sign = "Leão"
		}
		if kind.UsesTheme() {
			item.Theme = "hidratação"
		}
		content, err := backend.Generate(context.Background(), item)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if content.DisplayText == "" || content.Caption == "" {
			t.Fatalf("%s: empty copy %+v", kind, content)
		}
		if topic := item.Topic(); topic != "" && !strings.Contains(content.DisplayText+content.Caption, topic) {
			t.Fatalf("%s: copy does not mention %q: %+v", kind, topic, content)
		}
		if strings.Contains(content.DisplayText+content.Caption, "%s") {
			t.Fatalf("%s: unfilled placeholder: %+v", kind, content)
		}
		if match, ok := cat.FindBanned(content.DisplayText + " " + content.Caption); ok {
			t.Fatalf("%s: template contains banned phrase %q", kind, match)
		}
	}

	if _, err := backend.Generate(context.Background(), &queue.Item{Kind: "reel"}); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestWorkComposesTags(t *testing.T) {
	gen := generator.New(generator.TemplateBackend{}, catalog.Default(), nil)
	patch, err := gen.Work(context.Background(), &queue.Item{ID: 1, Kind: queue.KindSignCarousel, Sign: "Escorpião"})
	if err != nil {
		t.Fatalf("Work: %v", err)
	}
	if patch.DisplayText == nil || !strings.HasPrefix(*patch.DisplayText, "Escorpião") {
		t.Fatalf("unexpected display text: %v", patch.DisplayText)
	}
	if patch.Caption == nil || *patch.Caption == "" {
		t.Fatal("expected caption")
	}
	for _, want := range []string{"#NutriSigno", "#Escorpião", "#Signos"} {
		if !slices.Contains(patch.Tags, want) {
			t.Fatalf("tags %v missing %s", patch.Tags, want)
		}
	}
	if patch.AssetRef != nil || patch.PlannedPublishAt != nil {
		t.Fatalf("generator must only set copy fields: %+v", patch)
	}
}

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	return f.response, f.err
}

func TestLLMBackend(t *testing.T) {
	completer := &fakeCompleter{response: "```json\n" +
		`{"display_text":"Câncer e o conforto do prato","caption":"Acolha a semana com sopa e água.","tags":["#Câncer","aconchego"]}` +
		"\n```"}
	gen := generator.New(generator.NewLLMBackend(completer), catalog.Default(), nil)

	patch, err := gen.Work(context.Background(), &queue.Item{ID: 2, Kind: queue.KindWeeklyForecast, Sign: "Câncer", PlanSlot: "2026-03-05"})
	if err != nil {
		t.Fatalf("Work: %v", err)
	}
	if *patch.DisplayText != "Câncer e o conforto do prato" {
		t.Fatalf("display text = %q", *patch.DisplayText)
	}
	if !slices.Contains(patch.Tags, "#Aconchego") || !slices.Contains(patch.Tags, "#PrevisãoSemanal") {
		t.Fatalf("tags = %v", patch.Tags)
	}
	if n := strings.Count(strings.Join(patch.Tags, " "), "#Câncer"); n != 1 {
		t.Fatalf("expected #Câncer once, got %d in %v", n, patch.Tags)
	}
	if len(completer.prompts) != 1 || !strings.Contains(completer.prompts[0], "Zodiac sign: Câncer") {
		t.Fatalf("unexpected prompt: %v", completer.prompts)
	}
}

func TestLLMBackendErrors(t *testing.T) {
	item := &queue.Item{ID: 3, Kind: queue.KindEducational, Theme: "sono"}

	malformed := generator.New(generator.NewLLMBackend(&fakeCompleter{response: "not json"}), nil, nil)
	_, err := malformed.Work(context.Background(), item)
	if err == nil || services.IsPermanent(err) {
		t.Fatalf("malformed completion should be transient, got %v", err)
	}

	empty := generator.New(generator.NewLLMBackend(&fakeCompleter{response: `{"display_text":"","caption":"x"}`}), nil, nil)
	if _, err := empty.Work(context.Background(), item); err == nil || services.IsPermanent(err) {
		t.Fatalf("empty copy should be transient, got %v", err)
	}

	upstream := services.Wrap(services.ErrPermanent, "llm", "complete", "completion request rejected", nil)
	rejected := generator.New(generator.NewLLMBackend(&fakeCompleter{err: upstream}), nil, nil)
	if _, err := rejected.Work(context.Background(), item); !errors.Is(err, upstream) || !services.IsPermanent(err) {
		t.Fatalf("classified error should pass through, got %v", err)
	}
}

type brokenBackend struct{}

func (brokenBackend) Name() string { return "broken" }

func (brokenBackend) Generate(context.Context, *queue.Item) (generator.Content, error) {
	return generator.Content{}, errors.New("template missing")
}

func TestUnclassifiedBackendErrorsArePermanent(t *testing.T) {
	gen := generator.New(brokenBackend{}, nil, nil)
	_, err := gen.Work(context.Background(), &queue.Item{Kind: queue.KindSinglePhrase})
	if !services.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	gen, err := generator.NewFromConfig(&cfg, nil, nil)
	if err != nil || gen == nil {
		t.Fatalf("template backend: %v", err)
	}

	cfg.Generator.Backend = "llm"
	cfg.LLM.APIKey = "key"
	if _, err := generator.NewFromConfig(&cfg, nil, nil); err != nil {
		t.Fatalf("llm backend: %v", err)
	}

	cfg.Generator.Backend = "carrier-pigeon"
	if _, err := generator.NewFromConfig(&cfg, nil, nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

type unreachableCompleter struct {
	fakeCompleter
	healthErr error
}

func (u *unreachableCompleter) HealthCheck(context.Context) error {
	return u.healthErr
}

func TestPrepareBatchChecksBackendReachability(t *testing.T) {
	items := []*queue.Item{{ID: 1, Kind: queue.KindSinglePhrase}}

	template := generator.New(generator.TemplateBackend{}, nil, nil)
	if err := template.PrepareBatch(context.Background(), items); err != nil {
		t.Fatalf("template backend: %v", err)
	}

	down := &unreachableCompleter{healthErr: errors.New("dial tcp: connection refused")}
	gen := generator.New(generator.NewLLMBackend(down), nil, nil)
	err := gen.PrepareBatch(context.Background(), items)
	if err == nil || !errors.Is(err, services.ErrExternal) || services.IsPermanent(err) {
		t.Fatalf("expected transient external error, got %v", err)
	}
	if len(down.prompts) != 0 {
		t.Fatalf("no completion should be requested: %v", down.prompts)
	}
	if err := gen.PrepareBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	down.healthErr = nil
	if err := gen.PrepareBatch(context.Background(), items); err != nil {
		t.Fatalf("reachable backend: %v", err)
	}
}

func TestUnreachableModelLeavesDraftsPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	draft := testsupport.NewDraft(t, store, queue.KindSinglePhrase, "")

	down := &unreachableCompleter{healthErr: errors.New("llm health: api key required")}
	gen := generator.New(generator.NewLLMBackend(down), nil, nil)
	result, err := stageexec.Run(context.Background(), stageexec.Policy{
		Name:        generator.StageName,
		Source:      queue.StatusDraft,
		Destination: queue.StatusGenerated,
		Capability:  gen,
	}, stageexec.Options{Store: store, Limit: 5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Pending != 1 || result.Advanced != 0 || result.Failed != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if len(down.prompts) != 0 {
		t.Fatalf("completion requested despite unreachable model: %v", down.prompts)
	}
	if got := testsupport.MustGet(t, store, draft.ID); got.Status != queue.StatusDraft || got.Revision != 0 {
		t.Fatalf("draft was mutated: %+v", got)
	}
}

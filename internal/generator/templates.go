package generator

import (
	"context"
	"fmt"
	"strings"

	"postflow/internal/queue"
)

type template struct {
	display string
	caption string
}

// Templates are formatted with the item topic. Kinds without a topic get a
// neutral fallback word.
var templates = map[queue.Kind]template{
	queue.KindSinglePhrase: {
		display: "Nutrir é um gesto de escuta: o corpo fala em ciclos.",
		caption: "Nutrição místico-racional é observar padrões e responder com pequenas ações diárias. " +
			"Sem pressa e sem culpa, um passo por vez.",
	},
	queue.KindSignCarousel: {
		display: "%s: três micro-hábitos para nutrir corpo e mente",
		caption: "%s se sente melhor quando prato e rotina conversam. " +
			"Escolha um hábito por semana e observe como seu corpo responde.",
	},
	queue.KindThemeCarousel: {
		display: "Como cuidar de %s com uma nutrição gentil",
		caption: "Para %s, comece pelo básico: água ao longo do dia, fibras no prato e pausas conscientes. " +
			"Constância vale mais do que radicalismo.",
	},
	queue.KindEducational: {
		display: "Nutrição descomplicada: %s sem dietas extremas",
		caption: "Uma explicação simples, baseada em ciência, sobre %s. " +
			"Ajuste o prato aos poucos e acompanhe os sinais do seu corpo.",
	},
	queue.KindWeeklyForecast: {
		display: "%s: o foco nutricional da semana",
		caption: "Semana de %s pede equilíbrio: cores no prato, hidratação e sono em dia. " +
			"Use cada refeição como ponto de apoio.",
	},
	queue.KindMotivational: {
		display: "Sobre %s: avanço pequeno também é avanço",
		caption: "Celebre os pequenos passos com %s, acolha os dias difíceis e siga no seu ritmo. " +
			"Nutrição é vínculo com você, não corrida por perfeição.",
	},
}

// TemplateBackend drafts copy from fixed per-kind templates. It never fails
// for a known kind, which makes it the default for unattended runs.
type TemplateBackend struct{}

// Name identifies the backend in logs.
func (TemplateBackend) Name() string { return "template" }

// Generate fills the template for item's kind.
func (TemplateBackend) Generate(_ context.Context, item *queue.Item) (Content, error) {
	tpl, ok := templates[item.Kind]
	if !ok {
		return Content{}, fmt.Errorf("no template for kind %q", item.Kind)
	}
	topic := strings.TrimSpace(item.Topic())
	if topic == "" {
		topic = fallbackTopic(item.Kind)
	}
	return Content{
		DisplayText: fill(tpl.display, topic),
		Caption:     fill(tpl.caption, topic),
	}, nil
}

func fill(format, topic string) string {
	if !strings.Contains(format, "%s") {
		return format
	}
	return strings.ReplaceAll(format, "%s", topic)
}

func fallbackTopic(kind queue.Kind) string {
	if kind.UsesSign() {
		return "Seu signo"
	}
	return "bem-estar"
}

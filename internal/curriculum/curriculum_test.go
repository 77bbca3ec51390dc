package curriculum

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadEmbedded(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids := reg.IDs()
	if len(ids) == 0 {
		t.Fatal("no curricula loaded")
	}
	c, err := reg.Curriculum("figma-basics")
	if err != nil {
		t.Fatalf("figma-basics: %v", err)
	}
	if len(c.Days) != 10 {
		t.Fatalf("expected 10 days, got %d", len(c.Days))
	}
	for _, d := range c.Days {
		m, ok := c.Mission(d.Day)
		if !ok {
			t.Fatalf("day %d has no mission", d.Day)
		}
		quizzes := 0
		for _, s := range m.Steps {
			if s.Kind == StepQuiz {
				quizzes++
			}
		}
		if quizzes == 0 {
			t.Errorf("day %d mission has no quiz step", d.Day)
		}
	}
}

func TestCurriculumNotFound(t *testing.T) {
	reg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := reg.Curriculum("nope"); err == nil {
		t.Fatal("expected error for unknown curriculum")
	}
	if _, err := reg.Mission("figma-basics", 99); err == nil {
		t.Fatal("expected error for unknown day")
	}
}

func TestTextFallback(t *testing.T) {
	txt := Text{"ko": "안녕", "en": "hello"}
	if got := txt.Get("ko"); got != "안녕" {
		t.Fatalf("ko: got %q", got)
	}
	if got := txt.Get("fr"); got != "hello" {
		t.Fatalf("fr should fall back to en, got %q", got)
	}
	noEN := Text{"ko": "안녕"}
	if got := noEN.Get("fr"); got != "안녕" {
		t.Fatalf("fr should fall back to any language, got %q", got)
	}
	if got := (Text{}).Get("en"); got != "" {
		t.Fatalf("empty text should render empty, got %q", got)
	}
}

func loadYAML(t *testing.T, doc string) error {
	t.Helper()
	fsys := fstest.MapFS{
		"data/test.yml": &fstest.MapFile{Data: []byte(doc)},
	}
	_, err := loadFS(fsys, "data")
	return err
}

func TestValidateRejectsBadData(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "days out of order",
			doc: `
id: bad
days:
  - day: 2
    title: {en: t}
    objective: {en: o}
    mission: {en: m}
`,
			want: "out of order",
		},
		{
			name: "mission for unknown day",
			doc: `
id: bad
days:
  - day: 1
    title: {en: t}
    objective: {en: o}
    mission: {en: m}
missions:
  - day: 3
    title: {en: t}
    subtitle: {en: s}
    steps:
      - id: s1
        kind: action
        instruction: {en: go}
`,
			want: "unknown day",
		},
		{
			name: "duplicate step id",
			doc: `
id: bad
days:
  - day: 1
    title: {en: t}
    objective: {en: o}
    mission: {en: m}
missions:
  - day: 1
    title: {en: t}
    subtitle: {en: s}
    steps:
      - id: s1
        kind: action
        instruction: {en: a}
      - id: s1
        kind: action
        instruction: {en: b}
`,
			want: "duplicate id",
		},
		{
			name: "quiz correct out of range",
			doc: `
id: bad
days:
  - day: 1
    title: {en: t}
    objective: {en: o}
    mission: {en: m}
missions:
  - day: 1
    title: {en: t}
    subtitle: {en: s}
    steps:
      - id: q1
        kind: quiz
        question: {en: q}
        options: [{en: a}, {en: b}]
        correct: 5
`,
			want: "out of range",
		},
		{
			name: "quiz needs two options",
			doc: `
id: bad
days:
  - day: 1
    title: {en: t}
    objective: {en: o}
    mission: {en: m}
missions:
  - day: 1
    title: {en: t}
    subtitle: {en: s}
    steps:
      - id: q1
        kind: quiz
        question: {en: q}
        options: [{en: only}]
        correct: 0
`,
			want: "two options",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := loadYAML(t, tc.doc)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestTextInput(t *testing.T) {
	plain := Step{Kind: StepAction, Instruction: Text{"en": "press"}}
	if plain.TextInput() {
		t.Fatal("button step should not be text input")
	}
	typed := Step{Kind: StepAction, Instruction: Text{"en": "type"}, Placeholder: Text{"en": "name"}}
	if !typed.TextInput() {
		t.Fatal("placeholder step should be text input")
	}
	quiz := Step{Kind: StepQuiz, Placeholder: Text{"en": "x"}}
	if quiz.TextInput() {
		t.Fatal("quiz step is never text input")
	}
}

package main

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"growit/internal/analytics"
	"growit/internal/app"
	"growit/internal/config"
	"growit/internal/curriculum"
	"growit/internal/progress"
)

func testRunnerCurriculum() curriculum.Curriculum {
	return curriculum.Curriculum{
		ID:    "runner-test",
		Title: curriculum.Text{"en": "Runner Test"},
		Days: []curriculum.Day{
			{Day: 1, Title: curriculum.Text{"en": "Day one"}},
			{Day: 2, Title: curriculum.Text{"en": "Day two"}},
		},
	}
}

func testRunnerMission() curriculum.Mission {
	return curriculum.Mission{
		Day:      1,
		Title:    curriculum.Text{"en": "First Mission"},
		Subtitle: curriculum.Text{"en": "Get moving"},
		Steps: []curriculum.Step{
			{ID: "s1", Kind: curriculum.StepAction, Instruction: curriculum.Text{"en": "press"}},
			{ID: "s2", Kind: curriculum.StepAction, Instruction: curriculum.Text{"en": "type"}, Placeholder: curriculum.Text{"en": "name"}},
			{ID: "s3", Kind: curriculum.StepQuiz, Question: curriculum.Text{"en": "pick"},
				Options: []curriculum.Text{{"en": "a"}, {"en": "b"}, {"en": "c"}}, Correct: 1},
			{ID: "s4", Kind: curriculum.StepAction, Instruction: curriculum.Text{"en": "finish"}},
		},
	}
}

func newTestRunner(t *testing.T, input string) (*missionRunner, *progress.FileStore) {
	t.Helper()
	store := progress.NewFileStore(t.TempDir())
	emitter := analytics.NewEmitter(nil, "test-device", false)
	t.Cleanup(func() { emitter.Close(time.Second) })
	c := &cli{
		appCtx: &app.Context{
			Workspace:   ".",
			Config:      config.Default(),
			Progress:    store,
			AnonymousID: "test-device",
		},
		emitter: emitter,
		lang:    "en",
	}
	return &missionRunner{
		cli: c,
		cur: testRunnerCurriculum(),
		in:  bufio.NewScanner(strings.NewReader(input)),
	}, store
}

func TestMissionRunnerCompletesScriptedInput(t *testing.T) {
	// One line per step: enter, text, correct option, enter.
	mr, store := newTestRunner(t, "\nmy frame\n2\n\n")
	if err := mr.run(context.Background(), testRunnerMission()); err != nil {
		t.Fatalf("run: %v", err)
	}
	days := store.CompletedDays("runner-test")
	if len(days) != 1 || days[0] != 1 {
		t.Fatalf("completed days = %v, want [1]", days)
	}
}

func TestMissionRunnerStopsWhenInputCloses(t *testing.T) {
	mr, store := newTestRunner(t, "")
	if err := mr.run(context.Background(), testRunnerMission()); err != nil {
		t.Fatalf("run after closed input: %v", err)
	}
	if days := store.CompletedDays("runner-test"); len(days) != 0 {
		t.Fatalf("completed days = %v, want none", days)
	}
}

func TestMissionRunnerQuizInputClosesAfterBadAnswer(t *testing.T) {
	// Reaches the quiz, answers garbage once, then the input ends. The
	// runner must give up instead of re-prompting forever.
	mr, store := newTestRunner(t, "\nmy frame\nnot-a-number\n")
	if err := mr.run(context.Background(), testRunnerMission()); err != nil {
		t.Fatalf("run after closed input: %v", err)
	}
	if days := store.CompletedDays("runner-test"); len(days) != 0 {
		t.Fatalf("completed days = %v, want none", days)
	}
}

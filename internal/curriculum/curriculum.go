package curriculum

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yml
var dataFS embed.FS

var ErrNotFound = errors.New("curriculum not found")

// Text is localized copy keyed by language code ("ko", "en").
type Text map[string]string

// Get resolves text for a language, falling back to English and then to
// any defined language so missing translations never render empty.
func (t Text) Get(lang string) string {
	if s, ok := t[lang]; ok && s != "" {
		return s
	}
	if s, ok := t["en"]; ok && s != "" {
		return s
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if t[k] != "" {
			return t[k]
		}
	}
	return ""
}

type StepKind string

const (
	StepAction StepKind = "action"
	StepQuiz   StepKind = "quiz"
)

// Step is one gated unit of interaction within a mission. Action steps
// complete on a user signal (button press, or a non-empty text submission
// when Placeholder is set). Quiz steps complete only on the correct option.
type Step struct {
	ID             string   `yaml:"id" json:"id"`
	Kind           StepKind `yaml:"kind" json:"kind"`
	Instruction    Text     `yaml:"instruction,omitempty" json:"instruction,omitempty"`
	Question       Text     `yaml:"question,omitempty" json:"question,omitempty"`
	Button         Text     `yaml:"button,omitempty" json:"button,omitempty"`
	Placeholder    Text     `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Options        []Text   `yaml:"options,omitempty" json:"options,omitempty"`
	Correct        int      `yaml:"correct" json:"correct"`
	SuccessMessage Text     `yaml:"success_message,omitempty" json:"success_message,omitempty"`
	Troubleshoot   Text     `yaml:"troubleshoot,omitempty" json:"troubleshoot,omitempty"`
	Zone           string   `yaml:"zone,omitempty" json:"zone,omitempty"`
	Shortcut       string   `yaml:"shortcut,omitempty" json:"shortcut,omitempty"`
}

// TextInput reports whether an action step advances via free-text entry
// rather than a plain button press.
func (s Step) TextInput() bool {
	return s.Kind == StepAction && len(s.Placeholder) > 0
}

type Mission struct {
	Day      int    `yaml:"day" json:"day"`
	Title    Text   `yaml:"title" json:"title"`
	Subtitle Text   `yaml:"subtitle" json:"subtitle"`
	Steps    []Step `yaml:"steps" json:"steps"`
}

type Day struct {
	Day       int    `yaml:"day" json:"day"`
	Title     Text   `yaml:"title" json:"title"`
	Objective Text   `yaml:"objective" json:"objective"`
	VideoID   string `yaml:"video_id" json:"video_id"`
	Mission   Text   `yaml:"mission" json:"mission"`
	Hint      Text   `yaml:"hint,omitempty" json:"hint,omitempty"`
}

type Curriculum struct {
	ID          string    `yaml:"id" json:"id"`
	Title       Text      `yaml:"title" json:"title"`
	Description Text      `yaml:"description" json:"description"`
	Days        []Day     `yaml:"days" json:"days"`
	Missions    []Mission `yaml:"missions" json:"missions"`
}

// Day returns the day definition for a day number.
func (c Curriculum) Day(n int) (Day, bool) {
	for _, d := range c.Days {
		if d.Day == n {
			return d, true
		}
	}
	return Day{}, false
}

// Mission returns the mission for a day number.
func (c Curriculum) Mission(n int) (Mission, bool) {
	for _, m := range c.Missions {
		if m.Day == n {
			return m, true
		}
	}
	return Mission{}, false
}

// Registry holds all curricula, loaded once at startup. Read-only after Load.
type Registry struct {
	curricula map[string]Curriculum
	order     []string
}

// Load parses and validates the embedded curriculum files.
func Load() (*Registry, error) {
	return loadFS(dataFS, "data")
}

func loadFS(fsys fs.FS, dir string) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	r := &Registry{curricula: map[string]Curriculum{}}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, err
		}
		var c Curriculum
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := r.curricula[c.ID]; dup {
			return nil, fmt.Errorf("duplicate curriculum id %s", c.ID)
		}
		r.curricula[c.ID] = c
		r.order = append(r.order, c.ID)
	}
	sort.Strings(r.order)
	return r, nil
}

// Curriculum resolves a curriculum by id.
func (r *Registry) Curriculum(id string) (Curriculum, error) {
	c, ok := r.curricula[id]
	if !ok {
		return Curriculum{}, fmt.Errorf("curriculum %s: %w", id, ErrNotFound)
	}
	return c, nil
}

// IDs lists the registered curriculum ids in sorted order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Mission resolves a day's mission across the registry.
func (r *Registry) Mission(curriculumID string, day int) (Mission, error) {
	c, err := r.Curriculum(curriculumID)
	if err != nil {
		return Mission{}, err
	}
	m, ok := c.Mission(day)
	if !ok {
		return Mission{}, fmt.Errorf("mission for day %d: %w", day, ErrNotFound)
	}
	return m, nil
}

// Validate ensures the curriculum meets the required structure: day numbers
// contiguous from 1 in sequence order, and every mission well formed.
func (c Curriculum) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("curriculum id is required")
	}
	if len(c.Days) == 0 {
		return fmt.Errorf("curriculum %s has no days", c.ID)
	}
	for i, d := range c.Days {
		if d.Day != i+1 {
			return fmt.Errorf("curriculum %s: day %d out of order at position %d", c.ID, d.Day, i)
		}
		if len(d.Title) == 0 || len(d.Objective) == 0 || len(d.Mission) == 0 {
			return fmt.Errorf("curriculum %s day %d: title, objective, and mission are required", c.ID, d.Day)
		}
	}
	for _, m := range c.Missions {
		if _, ok := c.Day(m.Day); !ok {
			return fmt.Errorf("curriculum %s: mission for unknown day %d", c.ID, m.Day)
		}
		if err := m.validate(); err != nil {
			return fmt.Errorf("curriculum %s day %d: %w", c.ID, m.Day, err)
		}
	}
	return nil
}

func (m Mission) validate() error {
	if len(m.Steps) == 0 {
		return fmt.Errorf("mission has no steps")
	}
	seen := map[string]bool{}
	for i, s := range m.Steps {
		if s.ID == "" {
			return fmt.Errorf("step %d: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("step %d: duplicate id %s", i, s.ID)
		}
		seen[s.ID] = true
		switch s.Kind {
		case StepAction:
			if len(s.Instruction) == 0 {
				return fmt.Errorf("step %s: instruction is required", s.ID)
			}
		case StepQuiz:
			if len(s.Question) == 0 {
				return fmt.Errorf("step %s: question is required", s.ID)
			}
			if len(s.Options) < 2 {
				return fmt.Errorf("step %s: at least two options required", s.ID)
			}
			if s.Correct < 0 || s.Correct >= len(s.Options) {
				return fmt.Errorf("step %s: correct index %d out of range", s.ID, s.Correct)
			}
		default:
			return fmt.Errorf("step %s: unknown kind %q", s.ID, s.Kind)
		}
	}
	return nil
}

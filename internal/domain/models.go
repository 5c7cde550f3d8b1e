package domain

import (
	"fmt"
	"strings"
	"time"
)

// Gender tags a pool record; distractors are drawn from the same group.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// ParseGender normalizes raw spreadsheet values ("m", " F ") to a Gender.
func ParseGender(raw string) (Gender, error) {
	switch g := Gender(strings.ToUpper(strings.TrimSpace(raw))); g {
	case GenderMale, GenderFemale:
		return g, nil
	default:
		return "", fmt.Errorf("unknown gender tag %q", raw)
	}
}

// Record is one labeled photo of the pool.
type Record struct {
	ImageRef string `json:"imageRef" yaml:"filename"`
	Answer   string `json:"answer" yaml:"answer"`
	Gender   Gender `json:"gender" yaml:"gender"`
}

// NewRecord trims and validates raw record fields.
func NewRecord(imageRef, answer, gender string) (Record, error) {
	rec := Record{
		ImageRef: strings.TrimSpace(imageRef),
		Answer:   strings.TrimSpace(answer),
	}
	if rec.ImageRef == "" {
		return Record{}, fmt.Errorf("empty filename")
	}
	if rec.Answer == "" {
		return Record{}, fmt.Errorf("empty answer")
	}
	g, err := ParseGender(gender)
	if err != nil {
		return Record{}, err
	}
	rec.Gender = g
	return rec, nil
}

// NameLists holds the unique answers of each gender group in first-seen order.
type NameLists struct {
	Male   []string `json:"male"`
	Female []string `json:"female"`
}

// For returns the names tagged with g.
func (n NameLists) For(g Gender) []string {
	if g == GenderMale {
		return n.Male
	}
	return n.Female
}

// All returns the union of both lists without duplicates.
func (n NameLists) All() []string {
	seen := make(map[string]struct{}, len(n.Male)+len(n.Female))
	out := make([]string, 0, len(n.Male)+len(n.Female))
	for _, list := range [][]string{n.Male, n.Female} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Pool is the full set of question records plus the derived name lists.
type Pool struct {
	Records []Record  `json:"records"`
	Names   NameLists `json:"names"`
}

// NewPool derives the name lists from records. Records are expected to be validated.
func NewPool(records []Record) Pool {
	pool := Pool{Records: records}
	seen := map[Gender]map[string]struct{}{
		GenderMale:   {},
		GenderFemale: {},
	}
	for _, rec := range records {
		if _, ok := seen[rec.Gender][rec.Answer]; ok {
			continue
		}
		seen[rec.Gender][rec.Answer] = struct{}{}
		if rec.Gender == GenderMale {
			pool.Names.Male = append(pool.Names.Male, rec.Answer)
		} else {
			pool.Names.Female = append(pool.Names.Female, rec.Answer)
		}
	}
	return pool
}

// Size returns the number of records.
func (p Pool) Size() int {
	return len(p.Records)
}

// Question is a pool record with its four shuffled options.
type Question struct {
	ImageRef string    `json:"imageRef"`
	Answer   string    `json:"-"`
	Gender   Gender    `json:"gender"`
	Options  [4]string `json:"options"`
}

// Phase is the state of a quiz session.
type Phase string

const (
	PhaseStart     Phase = "start"
	PhaseAnswering Phase = "answering"
	PhaseFeedback  Phase = "feedback"
	PhaseFinished  Phase = "finished"
)

// Outcome is the single scoring decision made for a question.
type Outcome struct {
	Index         int     `json:"index"`
	Choice        string  `json:"choice,omitempty"`
	CorrectAnswer string  `json:"correctAnswer"`
	Correct       bool    `json:"correct"`
	TimedOut      bool    `json:"timedOut"`
	Elapsed       float64 `json:"elapsed"`
	Awarded       float64 `json:"awarded"`
}

// QuestionView is what a player may see while answering: no correct answer.
type QuestionView struct {
	Number   int       `json:"number"`
	Total    int       `json:"total"`
	ImageRef string    `json:"imageRef"`
	Options  [4]string `json:"options"`
}

// Snapshot is a read-only copy of a session for presentation layers.
type Snapshot struct {
	SessionID    string        `json:"sessionId"`
	Phase        Phase         `json:"phase"`
	PoolSize     int           `json:"poolSize,omitempty"`
	Index        int           `json:"index"`
	Total        int           `json:"total"`
	Score        float64       `json:"score"`
	DisplayScore int           `json:"displayScore"`
	Question     *QuestionView `json:"question,omitempty"`
	Deadline     *time.Time    `json:"deadline,omitempty"`
	Remaining    float64       `json:"remaining"`
	Feedback     *Outcome      `json:"feedback,omitempty"`
	Results      []Outcome     `json:"results,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation errors
var (
	ErrEmptyID             = errors.New("id cannot be empty")
	ErrEmptyName           = errors.New("name cannot be empty")
	ErrDuplicateInstrument = errors.New("duplicate instrument id")
	ErrForeignQuestion     = errors.New("question belongs to a different instrument")
	ErrDuplicateQuestion   = errors.New("duplicate question number")
)

// ContextKey is the type used for values harmony stores in a context.Context.
type ContextKey string

const (
	// ContextKeyRequestID carries the id of the HTTP request or CLI run.
	ContextKeyRequestID ContextKey = "request_id"
	// ContextKeyRequestSource records which front end started the work (server, cli).
	ContextKeyRequestSource ContextKey = "request_source"
)

// Question is a single questionnaire item.
//
// The annotation fields (TopicsAuto, TopicsStrengths, NearestCatalogueMatch) are filled in
// place by the matching engine and are read-only afterwards.
type Question struct {
	QuestionNo     string   `json:"question_no" yaml:"question_no"`
	QuestionIntro  string   `json:"question_intro,omitempty" yaml:"question_intro,omitempty"`
	QuestionText   string   `json:"question_text" yaml:"question_text"`
	Options        []string `json:"options,omitempty" yaml:"options,omitempty"`
	SourcePage     int      `json:"source_page" yaml:"source_page"`
	InstrumentID   string   `json:"instrument_id,omitempty" yaml:"instrument_id,omitempty"`
	InstrumentName string   `json:"instrument_name,omitempty" yaml:"instrument_name,omitempty"`

	// Topics are user-assigned.
	Topics []string `json:"topics,omitempty" yaml:"topics,omitempty"`
	// TopicsAuto are inferred from the reference catalogue.
	TopicsAuto []string `json:"topics_auto,omitempty" yaml:"topics_auto,omitempty"`
	// TopicsStrengths maps each inferred topic to the similarity that produced it.
	TopicsStrengths map[string]float64 `json:"topics_strengths,omitempty" yaml:"topics_strengths,omitempty"`
	// NearestCatalogueMatch is the closest reference catalogue entry.
	NearestCatalogueMatch *CatalogueEntry `json:"nearest_match_from_catalogue,omitempty" yaml:"nearest_match_from_catalogue,omitempty"`
}

// Instrument is a questionnaire: an ordered sequence of questions in one language.
type Instrument struct {
	ID        string      `json:"instrument_id" yaml:"instrument_id"`
	Name      string      `json:"instrument_name" yaml:"instrument_name"`
	Language  string      `json:"language" yaml:"language"`
	Questions []*Question `json:"questions" yaml:"questions"`

	// Topics are the instrument level topics inferred from the reference catalogue.
	Topics []string `json:"topics_auto,omitempty" yaml:"topics_auto,omitempty"`
}

// NewInstrument creates an instrument and stamps every question with its id and name.
// An empty language defaults to English and an empty id is replaced by a random one.
func NewInstrument(id, name, language string, questions []*Question) *Instrument {
	inst := &Instrument{
		ID:        id,
		Name:      name,
		Language:  language,
		Questions: questions,
	}
	inst.Init()
	return inst
}

// Init completes an instrument built outside NewInstrument, such as one decoded from a file
// or a request body: the language is lowercased (default "en"), a missing id is generated
// and every question is stamped.
func (i *Instrument) Init() {
	i.Language = strings.ToLower(strings.TrimSpace(i.Language))
	if i.Language == "" {
		i.Language = "en"
	}
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	i.Stamp()
}

// Stamp writes the instrument's id and name into every question's back-reference.
func (i *Instrument) Stamp() {
	for _, q := range i.Questions {
		if q == nil {
			continue
		}
		q.InstrumentID = i.ID
		q.InstrumentName = i.Name
	}
}

// Validate checks the instrument invariants.
func (i *Instrument) Validate() error {
	if i.ID == "" {
		return ErrEmptyID
	}
	seen := make(map[string]struct{}, len(i.Questions))
	for _, q := range i.Questions {
		if q == nil {
			continue
		}
		if q.InstrumentID != "" && q.InstrumentID != i.ID {
			return fmt.Errorf("%w: question %s has instrument %q, expected %q", ErrForeignQuestion, q.QuestionNo, q.InstrumentID, i.ID)
		}
		if q.QuestionNo == "" {
			continue
		}
		if _, ok := seen[q.QuestionNo]; ok {
			return fmt.Errorf("%w: %s in instrument %s", ErrDuplicateQuestion, q.QuestionNo, i.ID)
		}
		seen[q.QuestionNo] = struct{}{}
	}
	return nil
}

// CheckUniqueIDs reports ErrDuplicateInstrument when two instruments share an id.
func CheckUniqueIDs(instruments []*Instrument) error {
	seen := make(map[string]struct{}, len(instruments))
	for _, inst := range instruments {
		if inst == nil {
			continue
		}
		if _, ok := seen[inst.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateInstrument, inst.ID)
		}
		seen[inst.ID] = struct{}{}
	}
	return nil
}

// FlattenQuestions returns the questions of all instruments in order.
func FlattenQuestions(instruments []*Instrument) []*Question {
	var out []*Question
	for _, inst := range instruments {
		if inst == nil {
			continue
		}
		for _, q := range inst.Questions {
			if q != nil {
				out = append(out, q)
			}
		}
	}
	return out
}

// QuestionCount returns the number of non-nil questions of inst, the number of rows it
// contributes to a similarity matrix over FlattenQuestions.
func QuestionCount(inst *Instrument) int {
	if inst == nil {
		return 0
	}
	n := 0
	for _, q := range inst.Questions {
		if q != nil {
			n++
		}
	}
	return n
}

// TextVector is a cached embedding of a piece of text.
type TextVector struct {
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
	IsNegated bool      `json:"is_negated"`
	IsQuery   bool      `json:"is_query"`
}

// CatalogueEntry is a canonical, topic-tagged question from a reference catalogue.
type CatalogueEntry struct {
	Text   string    `json:"text" yaml:"text"`
	Vector []float32 `json:"vector,omitempty" yaml:"vector,omitempty"`
	Topics []string  `json:"topics" yaml:"topics"`
}

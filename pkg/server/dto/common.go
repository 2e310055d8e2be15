package dto

import (
	"errors"
	"fmt"

	"github.com/soundprediction/harmony/pkg/types"
)

// Validation errors
var (
	ErrNoInstruments      = errors.New("instruments cannot be empty")
	ErrTooManyInstruments = errors.New("instruments count exceeds maximum (100)")
	ErrTooManyQuestions   = errors.New("questions count exceeds maximum (5000)")
	ErrTextTooLong        = errors.New("question text exceeds maximum length (8KB)")
	ErrInvalidThreshold   = errors.New("threshold must be between -1 and 1")
)

// MaxFieldLengths defines limits that keep a single request from exhausting the server
const (
	MaxInstruments    = 100
	MaxQuestions      = 5000
	MaxQuestionLength = 8 * 1024
	MaxQueryLength    = 8 * 1024
	MaxTopicCount     = 50
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// InstrumentsRequest is the body shared by every harmonisation endpoint.
type InstrumentsRequest struct {
	Instruments []*types.Instrument `json:"instruments"`
	Query       string              `json:"query,omitempty"`
}

// Validate checks the instruments, normalises their languages and assigns missing ids.
func (r *InstrumentsRequest) Validate() error {
	if len(r.Instruments) == 0 {
		return ErrNoInstruments
	}
	if len(r.Instruments) > MaxInstruments {
		return ErrTooManyInstruments
	}
	if len(r.Query) > MaxQueryLength {
		return fmt.Errorf("query: %w", ErrTextTooLong)
	}

	total := 0
	for i, inst := range r.Instruments {
		if inst == nil {
			return fmt.Errorf("instrument %d is null", i)
		}
		inst.Init()
		for _, q := range inst.Questions {
			if q == nil {
				continue
			}
			if len(q.QuestionText) > MaxQuestionLength {
				return fmt.Errorf("instrument %d question %s: %w", i, q.QuestionNo, ErrTextTooLong)
			}
			total++
		}
	}
	if total > MaxQuestions {
		return ErrTooManyQuestions
	}
	return nil
}

func validThreshold(t *float64) bool {
	return t == nil || (*t >= -1 && *t <= 1)
}

package dto

import (
	"fmt"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

// MatchRequest runs the matching engine.
type MatchRequest struct {
	InstrumentsRequest
}

// MatchResponse is the matching engine output with the similarity matrix as nested rows.
type MatchResponse struct {
	Questions       []*types.Question `json:"questions"`
	Similarity      [][]float64       `json:"matches"`
	QuerySimilarity []float64         `json:"query_similarity,omitempty"`
	Stats           types.MatchStats  `json:"stats"`
}

// NewMatchResponse converts a match result.
func NewMatchResponse(res *types.MatchResult) MatchResponse {
	return MatchResponse{
		Questions:       res.Questions,
		Similarity:      utils.Rows(res.Similarity),
		QuerySimilarity: res.QuerySimilarity,
		Stats:           res.Stats,
	}
}

// ClusterRequest clusters the matched questions.
type ClusterRequest struct {
	InstrumentsRequest
	// Strategy is "deterministic" or "affinity_propagation"; empty uses the server default.
	Strategy   string   `json:"strategy,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	TopicCount *int     `json:"topic_count,omitempty"`
}

// Validate performs validation on ClusterRequest
func (r *ClusterRequest) Validate() error {
	if err := r.InstrumentsRequest.Validate(); err != nil {
		return err
	}
	if !validThreshold(r.Threshold) {
		return ErrInvalidThreshold
	}
	if r.TopicCount != nil && (*r.TopicCount < 0 || *r.TopicCount > MaxTopicCount) {
		return fmt.Errorf("topic_count must be between 0 and %d", MaxTopicCount)
	}
	return nil
}

// ClusterResponse holds the clusters of one request.
type ClusterResponse struct {
	Clusters []types.HarmonyCluster `json:"clusters"`
	Stats    types.MatchStats       `json:"stats"`
}

// CrosswalkRequest builds a crosswalk table.
type CrosswalkRequest struct {
	InstrumentsRequest
	Threshold             *float64 `json:"threshold,omitempty"`
	ExcludeSameInstrument bool     `json:"exclude_same_instrument,omitempty"`
	OneToOne              bool     `json:"one_to_one,omitempty"`
}

// Validate performs validation on CrosswalkRequest
func (r *CrosswalkRequest) Validate() error {
	if err := r.InstrumentsRequest.Validate(); err != nil {
		return err
	}
	if !validThreshold(r.Threshold) {
		return ErrInvalidThreshold
	}
	return nil
}

// CrosswalkResponse holds the crosswalk rows.
type CrosswalkResponse struct {
	Crosswalk []types.CrosswalkRow `json:"crosswalk"`
	Stats     types.MatchStats     `json:"stats"`
}

// AlignRequest scores every pair of instruments.
type AlignRequest struct {
	InstrumentsRequest
}

// AlignResponse holds one entry per instrument pair.
type AlignResponse struct {
	Alignments []types.InstrumentToInstrumentSimilarity `json:"instrument_to_instrument_similarities"`
	Stats      types.MatchStats                         `json:"stats"`
}

// HarmoniseResponse holds every output of a harmonisation run.
type HarmoniseResponse struct {
	MatchResponse
	Clusters   []types.HarmonyCluster                   `json:"clusters"`
	Alignments []types.InstrumentToInstrumentSimilarity `json:"instrument_to_instrument_similarities"`
	Crosswalk  []types.CrosswalkRow                     `json:"crosswalk"`
}

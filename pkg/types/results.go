package types

import (
	"encoding/json"

	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/utils"
)

// MatchStats summarises the work done by one matching run.
type MatchStats struct {
	Questions  int `json:"questions"`
	Texts      int `json:"texts"`
	CacheHits  int `json:"cache_hits"`
	Vectorised int `json:"vectorised"`
}

// MatchResult is the output of the matching engine.
//
// In JSON the similarity matrix is written as an array of rows under "matches".
type MatchResult struct {
	// Questions are the flattened, annotated questions in instrument order.
	Questions []*Question `json:"questions"`
	// Similarity is the polarity corrected item-to-item similarity matrix.
	Similarity *mat.Dense `json:"-"`
	// QuerySimilarity holds one score per question, or nil when no query was given.
	QuerySimilarity []float64 `json:"query_similarity,omitempty"`
	// NewVectors are the vectors computed during this run, for the caller to cache.
	NewVectors []TextVector `json:"new_vectors,omitempty"`
	Stats      MatchStats   `json:"stats"`
}

type matchResultJSON struct {
	matchResultFields
	Matches [][]float64 `json:"matches"`
}

type matchResultFields MatchResult

func (r MatchResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(matchResultJSON{
		matchResultFields: matchResultFields(r),
		Matches:           utils.Rows(r.Similarity),
	})
}

func (r *MatchResult) UnmarshalJSON(data []byte) error {
	var aux matchResultJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	sim, err := utils.FromRows(aux.Matches)
	if err != nil {
		return err
	}
	*r = MatchResult(aux.matchResultFields)
	r.Similarity = sim
	return nil
}

// HarmonyCluster is a group of questions judged to measure the same construct.
type HarmonyCluster struct {
	ClusterID       int         `json:"cluster_id"`
	CentroidID      int         `json:"centroid_id"`
	Centroid        *Question   `json:"centroid"`
	ItemIDs         []int       `json:"item_ids"`
	Items           []*Question `json:"items"`
	TextDescription string      `json:"text_description"`
	Keywords        []string    `json:"keywords"`
	Score           float64     `json:"score"`
}

// InstrumentToInstrumentSimilarity holds the alignment scores of two instruments.
//
// Precision is measured against the second instrument's size and recall against the first's.
type InstrumentToInstrumentSimilarity struct {
	InstrumentAIndex int     `json:"instrument_1_idx"`
	InstrumentBIndex int     `json:"instrument_2_idx"`
	InstrumentAID    string  `json:"instrument_1_id"`
	InstrumentBID    string  `json:"instrument_2_id"`
	InstrumentAName  string  `json:"instrument_1_name"`
	InstrumentBName  string  `json:"instrument_2_name"`
	Precision        float64 `json:"precision"`
	Recall           float64 `json:"recall"`
	F1               float64 `json:"f1"`
}

// CrosswalkRow is one matched pair of questions.
type CrosswalkRow struct {
	PairID        string  `json:"pair_name" parquet:"pair_name"`
	Question1No   string  `json:"question1_no" parquet:"question1_no"`
	Question1Text string  `json:"question1_text" parquet:"question1_text"`
	Question2No   string  `json:"question2_no" parquet:"question2_no"`
	Question2Text string  `json:"question2_text" parquet:"question2_text"`
	Instrument1ID string  `json:"instrument1_id,omitempty" parquet:"instrument1_id"`
	Instrument2ID string  `json:"instrument2_id,omitempty" parquet:"instrument2_id"`
	Score         float64 `json:"match_score" parquet:"match_score"`
}

package crosswalk

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
)

func threeQuestions() []*types.Question {
	return []*types.Question{
		{QuestionNo: "1", QuestionText: "I feel nervous", InstrumentID: "gad"},
		{QuestionNo: "2", QuestionText: "I worry a lot", InstrumentID: "gad"},
		{QuestionNo: "A", QuestionText: "I am anxious", InstrumentID: "phq"},
	}
}

func threeByThree() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0.7, 0.9,
		0.7, 1, 0.8,
		0.9, 0.8, 1,
	})
}

func TestBuild(t *testing.T) {
	rows := Build(threeQuestions(), threeByThree(), 0.6, Options{})

	require.Len(t, rows, 3)
	assert.Equal(t, "0_1", rows[0].PairID)
	assert.Equal(t, 0.7, rows[0].Score)
	assert.Equal(t, "0_2", rows[1].PairID)
	assert.Equal(t, 0.9, rows[1].Score)
	assert.Equal(t, "1_2", rows[2].PairID)
	assert.Equal(t, 0.8, rows[2].Score)

	assert.Equal(t, "2", rows[2].Question1No)
	assert.Equal(t, "I am anxious", rows[2].Question2Text)
	assert.Equal(t, "gad", rows[2].Instrument1ID)
	assert.Equal(t, "phq", rows[2].Instrument2ID)
}

func TestBuildThresholdIsStrict(t *testing.T) {
	assert.Empty(t, Build(threeQuestions(), threeByThree(), 0.95, Options{}))
	assert.Len(t, Build(threeQuestions(), threeByThree(), 0.8, Options{}), 1)
}

func TestBuildOptions(t *testing.T) {
	rows := Build(threeQuestions(), threeByThree(), 0.6, Options{ExcludeSameInstrument: true})
	require.Len(t, rows, 2)
	assert.Equal(t, "0_2", rows[0].PairID)
	assert.Equal(t, "1_2", rows[1].PairID)

	rows = Build(threeQuestions(), threeByThree(), 0.6, Options{OneToOne: true})
	require.Len(t, rows, 1)
	assert.Equal(t, "0_2", rows[0].PairID)
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil, nil, 0.5, Options{}))
	assert.Empty(t, Build(threeQuestions(), &mat.Dense{}, 0.5, Options{}))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Build(threeQuestions(), threeByThree(), 0.6, Options{})))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"0_2", "1", "I feel nervous", "A", "I am anxious", "gad", "phq", "0.9"}, records[2])
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crosswalk.parquet")
	rows := Build(threeQuestions(), threeByThree(), 0.6, Options{})

	require.NoError(t, WriteParquet(path, rows))
	got, err := ReadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

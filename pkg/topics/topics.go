// Package topics derives descriptive keywords for clusters of questions.
//
// A multinomial naive Bayes model is fitted with one class per cluster and one training
// document per member question. Each cluster's keywords are its tokens ranked by class
// conditional log probability, excluding stopwords of the languages detected in the
// cluster and tokens that do not occur in the cluster's own text.
package topics

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bbalet/stopwords"
	"github.com/pemistahl/lingua-go"
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
)

// Alpha is the additive (Laplace) smoothing parameter.
const Alpha = 1.0

// two or more word characters, unicode aware
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// languages that have both a detector model and a stopword list
var supported = []lingua.Language{
	lingua.Arabic, lingua.Bulgarian, lingua.Czech, lingua.Danish, lingua.Dutch,
	lingua.English, lingua.Finnish, lingua.French, lingua.German, lingua.Greek,
	lingua.Hungarian, lingua.Indonesian, lingua.Italian, lingua.Latvian, lingua.Persian,
	lingua.Polish, lingua.Portuguese, lingua.Romanian, lingua.Russian, lingua.Slovak,
	lingua.Spanish, lingua.Swedish, lingua.Thai, lingua.Turkish,
}

// Generator produces keyword lists for clusters. It is safe for concurrent use.
type Generator struct {
	once     sync.Once
	detector lingua.LanguageDetector
	logger   *slog.Logger
}

// NewGenerator creates a generator. The language detector is built on first use.
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger.With("component", "topics")}
}

var (
	defaultOnce sync.Once
	defaultGen  *Generator
)

// Default returns a process wide generator so the language models are loaded once.
func Default() *Generator {
	defaultOnce.Do(func() { defaultGen = NewGenerator(nil) })
	return defaultGen
}

// Tokenize lowercases and NFKC normalises text and returns its tokens of two or more
// word characters.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(norm.NFKC.String(text)), -1)
}

// Topics returns up to topK keywords per cluster, in cluster order. Equal scores are
// ordered by token.
func (g *Generator) Topics(clusters []types.HarmonyCluster, topK int) [][]string {
	out := make([][]string, len(clusters))
	if len(clusters) == 0 || topK <= 0 {
		for i := range out {
			out[i] = []string{}
		}
		return out
	}

	vocab := make(map[string]int)
	var terms []string
	docs := make([][]int, len(clusters))
	for c, cl := range clusters {
		for _, q := range cl.Items {
			if q == nil {
				continue
			}
			for _, tok := range Tokenize(q.QuestionText) {
				id, ok := vocab[tok]
				if !ok {
					id = len(terms)
					vocab[tok] = id
					terms = append(terms, tok)
				}
				docs[c] = append(docs[c], id)
			}
		}
	}
	if len(terms) == 0 {
		for i := range out {
			out[i] = []string{}
		}
		return out
	}

	logProb := featureLogProb(docs, len(terms))

	for c, cl := range clusters {
		present := make(map[int]struct{}, len(docs[c]))
		for _, id := range docs[c] {
			present[id] = struct{}{}
		}
		langs := g.languages(cl.Items)

		candidates := make([]int, 0, len(present))
		for id := range present {
			if isStopword(terms[id], langs) {
				continue
			}
			candidates = append(candidates, id)
		}
		sort.Slice(candidates, func(a, b int) bool {
			pa, pb := logProb.At(c, candidates[a]), logProb.At(c, candidates[b])
			if pa != pb {
				return pa > pb
			}
			return terms[candidates[a]] < terms[candidates[b]]
		})

		keywords := make([]string, 0, topK)
		for _, id := range candidates {
			if len(keywords) == topK {
				break
			}
			keywords = append(keywords, terms[id])
		}
		out[c] = keywords
	}
	return out
}

// featureLogProb fits the multinomial model: log((count + alpha) / (total + alpha*V)).
func featureLogProb(docs [][]int, vocabSize int) *mat.Dense {
	counts := mat.NewDense(len(docs), vocabSize, nil)
	for c, ids := range docs {
		for _, id := range ids {
			counts.Set(c, id, counts.At(c, id)+1)
		}
	}
	logProb := mat.NewDense(len(docs), vocabSize, nil)
	for c := range docs {
		total := mat.Sum(counts.RowView(c)) + Alpha*float64(vocabSize)
		for t := 0; t < vocabSize; t++ {
			logProb.Set(c, t, math.Log((counts.At(c, t)+Alpha)/total))
		}
	}
	return logProb
}

// languages returns the ISO 639-1 codes detected in the items' texts.
func (g *Generator) languages(items []*types.Question) []string {
	g.once.Do(func() {
		g.detector = lingua.NewLanguageDetectorBuilder().FromLanguages(supported...).Build()
	})

	seen := make(map[string]struct{})
	var codes []string
	for _, q := range items {
		if q == nil || strings.TrimSpace(q.QuestionText) == "" {
			continue
		}
		lang, ok := g.detector.DetectLanguageOf(q.QuestionText)
		if !ok {
			continue
		}
		code := strings.ToLower(lang.IsoCode639_1().String())
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) > 0 {
		g.logger.Debug("detected cluster languages", "languages", codes, "items", len(items))
	}
	return codes
}

func isStopword(token string, langs []string) bool {
	for _, lang := range langs {
		if strings.TrimSpace(stopwords.CleanString(token, lang, false)) == "" {
			return true
		}
	}
	return false
}

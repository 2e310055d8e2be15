package embedder

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/soundprediction/harmony/pkg/utils"
)

var hashingToken = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// HashingEmbedder is a deterministic bag-of-words embedder based on feature hashing.
// Texts sharing words get similar vectors. It needs no model and no network.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder returns a hashing embedder producing vectors of the given size.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashingEmbedder{dims: dims}
}

func (h *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, h, text)
}

func (h *HashingEmbedder) Dimensions() int { return h.dims }

func (h *HashingEmbedder) Close() error { return nil }

func (h *HashingEmbedder) vector(text string) []float32 {
	vec := make([]float32, h.dims)
	text = strings.ToLower(norm.NFKC.String(text))
	for _, tok := range hashingToken.FindAllString(text, -1) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		idx := int(sum % uint64(h.dims))
		// the top bit picks the sign so collisions cancel on average
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	if unit := utils.Normalize(vec); unit != nil {
		return unit
	}
	return vec
}

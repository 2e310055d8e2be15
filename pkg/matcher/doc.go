// Package matcher implements the polarity-aware matching engine.
//
// The engine flattens the questions of one or more instruments, vectorises each question
// together with a negated anchor of the same statement, and builds an item-to-item
// similarity matrix whose sign tells whether two items point in the same direction:
//
//	pairwise = cos(pos, pos)
//	negMean  = (cos(neg, pos) + cos(pos, neg)) / 2
//	score    = max(pairwise, negMean) * sign(pairwise - negMean)
//
// where differences smaller than PolarityEpsilon count as positive.
//
// Optionally it scores a free-text query against every item and propagates topics from a
// reference catalogue to the questions and instruments.
package matcher

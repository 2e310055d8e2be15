// Package types defines the core data types for the harmony matching engine.
//
// This package contains the fundamental types used throughout harmony:
//   - Instrument: A questionnaire with an ordered set of questions
//   - Question: A single questionnaire item plus the annotations added by matching
//   - TextVector: A cached text embedding
//   - CatalogueEntry: A topic-tagged reference question used for topic propagation
//   - HarmonyCluster: A group of equivalent questions with a centroid and keywords
//   - InstrumentToInstrumentSimilarity: Alignment scores for a pair of instruments
//   - CrosswalkRow: One matched pair in a crosswalk table
//
// # Construction
//
// Instruments should be built with NewInstrument so that every question carries the
// owning instrument's id:
//
//	inst := types.NewInstrument("gad7", "GAD-7", "en", questions)
//	if err := inst.Validate(); err != nil {
//	    // Handle validation error
//	}
//
// # JSON Serialization
//
// All types are designed to be JSON-serializable with appropriate struct tags.
// Vectors are excluded from JSON output where they would only add noise.
package types

// Package harmony matches questionnaire items across instruments and languages.
//
// Harmony decides which questions of one or more questionnaires ("instruments") measure
// the same construct. It vectorises every question together with a negated anchor of the
// same statement and reports a polarity aware similarity matrix: strongly positive for
// equivalent items, strongly negative for items that mean the opposite.
//
// # Basic Usage
//
//	emb := embedder.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"), embedder.Config{
//		Model: "text-embedding-3-small",
//	})
//	client := harmony.NewClient(emb, nil, nil, nil, logger)
//	defer client.Close()
//
//	instruments, err := instrument.LoadAll("gad7.yaml", "phq9.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.Harmonise(ctx, instruments, "anxiety")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Outputs
//
// A harmonisation holds the match result (annotated questions, similarity matrix and query
// similarity), clusters of equivalent questions with keywords, pairwise instrument
// alignment scores and a crosswalk table of matched pairs.
//
// # Caching
//
// Vectors are looked up in a caller owned vectorcache.Cache before the embedding provider is
// called, and vectors computed during a run are stored back into it. Use
// vectorcache.NewBadgerCache or vectorcache.NewRedisCache to keep vectors across processes.
package harmony

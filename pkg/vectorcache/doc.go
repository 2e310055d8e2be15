// Package vectorcache resolves texts to embedding vectors through a caller-owned cache.
//
// Resolve is the batching primitive used by the matching engine: it looks every text up
// in the cache, sends only the unseen texts to the vectoriser in a single call, and
// merges the results back in input order. Newly computed vectors are returned rather
// than written, so the caller decides what to persist and for how long:
//
//	batch, err := vectorcache.Resolve(ctx, texts, cache, vectorise)
//	if err != nil {
//	    return err
//	}
//	_ = vectorcache.Store(ctx, cache, batch.New)
//
// Three Cache implementations are provided:
//   - MemoryCache: a mutex-guarded map, safe to share between concurrent requests
//   - BadgerCache: an embedded badger/v4 store, on disk or in memory
//   - RedisCache: a shared redis instance with an optional TTL
package vectorcache

// Package vectorstore manages per-instance collections of embedded document
// chunks backed by PostgreSQL + pgvector.
//
// A collection is the storage unit behind one scholar instance. Chunks carry
// free-form string metadata; every write stamps the owning instance name into
// the chunk metadata so cross-instance leaks can only be introduced by
// restoring a foreign backup, and those are caught by the instance audit.
//
// Embeddings are generated through a genkit ai.Embedder. Query embeddings are
// cached in-process; the cache is cleared by the optimization service.
package vectorstore

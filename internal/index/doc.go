// Package index persists analysis artefacts in SQLite: transcript chunks in an
// FTS5 index for retrieval, archived run reports for later inspection and
// chat turns for conversational memory.
//
// The Store doubles as the pipeline's transcript side channel (Observer) and
// as the chat unit's Retriever and Memory. Search ranks chunks with BM25 and
// falls back to keyword overlap over the stored transcript when the full-text
// query finds nothing.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt a new schema.
package index

package vectordb

// Reserved metadata fields attached to every stored chunk.
const (
	// MetaSourceFilename is the user-visible filename a chunk came from.
	MetaSourceFilename = "source_filename"
	// MetaFileKey is the SHA-256 identity key of the filename. It is the
	// sole criterion for replacement and deletion, so deletion never
	// depends on filename characters clashing with filter syntax.
	MetaFileKey = "_filename_hash"
	// MetaChunkID is the 0-based ordinal of the chunk within its
	// document, as a decimal string.
	MetaChunkID = "chunk_id"
)

// Document is a chunk of text to be stored and searched.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result pairs a retrieved document with its similarity score.
type Result struct {
	Document   Document
	Similarity float32
}

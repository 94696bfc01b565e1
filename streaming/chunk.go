package streaming

// ChunkKind tags what a Chunk carries.
type ChunkKind int

const (
	// ChunkBytes carries a slice of raw stream bytes.
	ChunkBytes ChunkKind = iota
	// ChunkEnd signals the stream has no more bytes.
	ChunkEnd
	// ChunkError signals the upstream source failed; Err is always non-nil.
	ChunkError
)

// Chunk is one unit handed to a Deserializer's push-style Feed method,
// modeling a transport read loop's three possible outcomes in one type
// instead of a (data, err, done) triple.
type Chunk struct {
	Kind ChunkKind
	Data []byte
	Err  error
}

// BytesChunk wraps a byte slice as a ChunkBytes Chunk.
func BytesChunk(data []byte) Chunk { return Chunk{Kind: ChunkBytes, Data: data} }

// EndChunk is the sentinel signaling stream completion.
func EndChunk() Chunk { return Chunk{Kind: ChunkEnd} }

// ErrorChunk wraps a terminal upstream error.
func ErrorChunk(err error) Chunk { return Chunk{Kind: ChunkError, Err: err} }

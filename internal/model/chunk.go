package model

// ChunkMetadata is persisted with every vector.
type ChunkMetadata struct {
	Filename        string `json:"filename"`
	FileType        string `json:"file_type"`
	UploadTimestamp string `json:"upload_timestamp"`
	CaseID          string `json:"case_id"`
	CaseDocumentID  string `json:"case_document_id"`
}

// ChunkRecord is one indexed span of a document.
type ChunkRecord struct {
	ID         string        `json:"id"`
	ChunkIndex int           `json:"chunk_index"`
	Text       string        `json:"text"`
	Embedding  []float32     `json:"-"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// ScoredChunk is a similarity match; Score is in [0,1], higher is closer.
type ScoredChunk struct {
	ID         string        `json:"id"`
	ChunkIndex int           `json:"chunk_index"`
	Text       string        `json:"text"`
	Score      float64       `json:"score"`
	Metadata   ChunkMetadata `json:"metadata"`
}

// Filter scopes reads to a case. An empty CaseDocumentID does not restrict.
type Filter struct {
	CaseID         string
	CaseDocumentID string
}

func (f Filter) Match(md ChunkMetadata) bool {
	if f.CaseID != "" && md.CaseID != f.CaseID {
		return false
	}
	if f.CaseDocumentID != "" && md.CaseDocumentID != f.CaseDocumentID {
		return false
	}
	return true
}

type NamespaceStats struct {
	VectorCount int64 `json:"vector_count"`
}

type IndexStats struct {
	TotalVectorCount int64                     `json:"total_vector_count"`
	IndexFullness    float64                   `json:"index_fullness"`
	Dimension        int                       `json:"dimension"`
	Namespaces       map[string]NamespaceStats `json:"namespaces"`
}

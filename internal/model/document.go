package model

// Document is a reconstructed upload: the ordered concatenation of every
// chunk sharing filename, upload timestamp and case document id.
type Document struct {
	Filename        string `json:"filename"`
	Content         string `json:"content"`
	CaseID          string `json:"case_id"`
	CaseDocumentID  string `json:"case_document_id"`
	ChunkCount      int    `json:"chunk_count"`
	UploadTimestamp string `json:"upload_timestamp"`
}

type DocumentBundle struct {
	CaseID         string     `json:"case_id"`
	CaseDocumentID string     `json:"case_document_id"`
	Documents      []Document `json:"documents"`
	Markdown       string     `json:"markdown"`
	TotalDocuments int        `json:"total_documents"`
}

type Upload struct {
	Data           []byte
	Filename       string
	ContentType    string
	CaseID         string
	CaseDocumentID string
}

// IngestResult reports both phases of an ingestion. Indexed is only true
// when every chunk was written; the blob phase never flips it.
type IngestResult struct {
	Message            string  `json:"message"`
	Indexed            bool    `json:"indexed"`
	Filename           string  `json:"filename"`
	FileType           string  `json:"file_type"`
	CaseID             string  `json:"case_id"`
	CaseDocumentID     string  `json:"case_document_id"`
	UploadTimestamp    string  `json:"upload_timestamp"`
	DocumentsProcessed int     `json:"documents_processed"`
	ChunksCreated      int     `json:"chunks_created"`
	BlobURL            *string `json:"s3_url"`
	BlobError          string  `json:"s3_error,omitempty"`
	Warning            string  `json:"warning,omitempty"`
}

type QueryResult struct {
	Query        string        `json:"query"`
	Results      []ScoredChunk `json:"results"`
	TotalResults int           `json:"total_results"`
}

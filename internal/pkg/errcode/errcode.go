package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrInvalid
	ErrInternal
	ErrInvalidFile
	ErrUnsupportedFileType
	ErrMissingCaseID
	ErrProcessFailed
	ErrEmbeddingFailed
	ErrVectorStoreFailed
)

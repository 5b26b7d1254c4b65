package errors

import "errors"

var (
	ErrInvalid  = errors.New("invalid")
	ErrInternal = errors.New("internal")

	ErrUnsupportedFileType = &KindError{kind: ErrInvalid, cause: errors.New("unsupported file type")}
	ErrMissingCaseID       = &KindError{kind: ErrInvalid, cause: errors.New("case_id is required")}
	ErrInvalidLimit        = &KindError{kind: ErrInvalid, cause: errors.New("limit out of range")}
	ErrEmptyQuery          = &KindError{kind: ErrInvalid, cause: errors.New("query is required")}
	ErrMissingFile         = &KindError{kind: ErrInvalid, cause: errors.New("file is required")}
	ErrFileTooLarge        = &KindError{kind: ErrInvalid, cause: errors.New("file too large")}

	ErrExtraction    = errors.New("extraction failed")
	ErrEmbedding     = errors.New("embedding failed")
	ErrVectorStore   = errors.New("vector store failed")
	ErrBlobStore     = errors.New("blob store failed")
	ErrEmptyDocument = errors.New("document produced no chunks")
)

// KindError attaches one of the package kinds to an underlying cause.
// errors.Is matches the kind, errors.Unwrap yields the cause.
type KindError struct {
	kind  error
	cause error
}

func (e *KindError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *KindError) Is(target error) bool {
	return target == e.kind
}

func (e *KindError) Unwrap() error {
	return e.cause
}

func (e *KindError) Kind() error {
	return e.kind
}

// Cause returns the message of the underlying error without the kind prefix.
func (e *KindError) Cause() string {
	if e.cause == nil {
		return ""
	}
	return e.cause.Error()
}

func wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return &KindError{kind: kind, cause: err}
}

func Invalid(err error) error     { return wrap(ErrInvalid, err) }
func Extraction(err error) error  { return wrap(ErrExtraction, err) }
func Embedding(err error) error   { return wrap(ErrEmbedding, err) }
func VectorStore(err error) error { return wrap(ErrVectorStore, err) }
func BlobStore(err error) error   { return wrap(ErrBlobStore, err) }

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsBlobStore(err error) bool {
	return errors.Is(err, ErrBlobStore)
}

// CauseText returns the most useful operator-facing text for err.
func CauseText(err error) string {
	if err == nil {
		return ""
	}
	var ke *KindError
	if errors.As(err, &ke) && ke.cause != nil {
		return ke.Cause()
	}
	return err.Error()
}

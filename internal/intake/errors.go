package intake

import "errors"

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type: upload a png, jpg, jpeg or pdf file")
	ErrDocumentTooLarge     = errors.New("document exceeds the maximum upload size")
	ErrEmptyDocument        = errors.New("document is empty")
	ErrMalformedDocument    = errors.New("document could not be decoded")
)

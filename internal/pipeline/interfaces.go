package pipeline

import "context"

// Normalizer converts an uploaded image into the canonical form sent to OCR.
type Normalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// TextExtractor extracts the full text transcription from normalized image
// bytes. An empty string means no text was found and is not an error.
type TextExtractor interface {
	ExtractText(ctx context.Context, imageBytes []byte) (string, error)
}

// Categorizer assigns one category label to extracted receipt text.
type Categorizer interface {
	Categorize(ctx context.Context, text string) (string, error)
}

// Archiver resolves folders in the remote archive tree and uploads files
// into them.
type Archiver interface {
	EnsureFolder(ctx context.Context, name, parentID string) (string, error)
	UploadFile(ctx context.Context, localPath, fileName, parentFolderID string) (string, error)
}

package repository

import "context"

// ArtifactRepository stores finished spreadsheet blobs and hands back opaque
// download handles. Blobs may expire; Fetch returns ErrArtifactNotFound for
// expired or unknown handles.
type ArtifactRepository interface {
	Store(ctx context.Context, filename string, data []byte) (handle string, err error)
	Fetch(ctx context.Context, handle string) (filename string, data []byte, err error)
}

// Package filemeta tracks every Trello attachment through local download and
// upload to the target drive.
package filemeta

import (
	"github.com/google/uuid"

	"github.com/colonyops/tsync/internal/trello"
)

// FileMeta is the migration state of one attachment.
//
// FileID names the locally cached copy. Hash is the hex sha256 of the cached
// bytes and is set together with Complete. TargetURL is set once the file has
// been uploaded; a nil value after an upload attempt means the upload failed.
type FileMeta struct {
	FileID      uuid.UUID         `json:"fileId"`
	Attachment  trello.Attachment `json:"attachment"`
	Complete    bool              `json:"complete"`
	Hash        *string           `json:"hash"`
	TargetURL   *string           `json:"targetUrl"`
	OriginBoard string            `json:"originBoard"`
}

// Downloadable reports whether the attachment is a stored file that still
// needs fetching.
func (m FileMeta) Downloadable() bool {
	return m.Attachment.IsUpload && !m.Complete
}

// Catalog maps attachment ids to their metadata.
type Catalog map[string]FileMeta

// Clone returns a shallow copy of c.
func (c Catalog) Clone() Catalog {
	out := make(Catalog, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Stats summarizes a catalog.
type Stats struct {
	Files      int
	Uploads    int
	External   int
	Complete   int
	Pending    int
	Uploaded   int
	Bytes      int64
	CachedSize int64
}

// Stats counts the catalog's files and sums the sizes of uploaded
// attachments, split by download state.
func (c Catalog) Stats() Stats {
	var s Stats
	for _, m := range c {
		s.Files++
		if !m.Attachment.IsUpload {
			s.External++
			continue
		}

		s.Uploads++
		s.Bytes += m.Attachment.Size()
		if m.Complete {
			s.Complete++
			s.CachedSize += m.Attachment.Size()
		} else {
			s.Pending++
		}
		if m.TargetURL != nil {
			s.Uploaded++
		}
	}
	return s
}

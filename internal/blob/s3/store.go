package s3blob

import "github.com/alanyoungcy/xetraetl/internal/domain"

// Store bundles a Reader and a Writer over the same bucket.
type Store struct {
	*Reader
	*Writer
}

// NewStore creates a read-write Store for the client's bucket.
func NewStore(c *Client) *Store {
	return &Store{Reader: NewReader(c), Writer: NewWriter(c)}
}

var (
	_ domain.BlobReader = (*Reader)(nil)
	_ domain.BlobWriter = (*Writer)(nil)
	_ domain.BlobStore  = (*Store)(nil)
)

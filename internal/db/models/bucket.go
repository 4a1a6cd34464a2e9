package models

// Bucket is a storage bucket row.
type Bucket struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	FileSizeLimit *int64 `json:"file_size_limit" yaml:"file_size_limit"` // nil when unlimited
}

// Exceeds reports whether the bucket's own limit is larger than limit.
// Buckets without a limit never exceed.
func (b Bucket) Exceeds(limit int64) bool {
	return b.FileSizeLimit != nil && *b.FileSizeLimit > limit
}

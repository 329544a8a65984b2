package catalog

// Chunk is one indexed catalog fragment. The ingestion pipeline produces the
// full list, persists it as the metadata sidecar of the vector index, and the
// retriever reads it back positionally aligned with the index vectors.
type Chunk struct {
	Page         int      `json:"page"`
	Ordinal      int      `json:"chunk"`
	Text         string   `json:"text"`
	Source       string   `json:"source"`
	SKUs         []string `json:"skus,omitempty"`
	Entities     []string `json:"entities,omitempty"`
	Backend      string   `json:"backend"`
	ImageRelPath string   `json:"image_relpath,omitempty"`
	ImageURL     string   `json:"image_url,omitempty"`
	Caption      string   `json:"caption,omitempty"`
}

package sitegen

// Build records one successful generation.
type Build struct {
	ID         string            `json:"id"`
	Template   string            `json:"template"`
	Fields     map[string]string `json:"fields"`
	Unresolved []string          `json:"unresolved"`
	Entries    int               `json:"entries"`
	Size       int64             `json:"size"`
	SHA256     string            `json:"sha256"`
	CreatedAt  string            `json:"createdAt"` // RFC 3339, UTC
}

// SiteFile is metadata about a file uploaded into the site directory.
type SiteFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	UploadedAt  string `json:"uploadedAt,omitempty"` // RFC 3339, UTC; empty for files not uploaded through the API
}

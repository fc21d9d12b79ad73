package model

// PageImage is one captured page. Index determines the page order of the assembled document.
type PageImage struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

// DocumentArtifact is a complete, ready-to-upload document on local disk.
type DocumentArtifact struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Pages int    `json:"pages,omitempty"`
}

// StorageLocator identifies an uploaded artifact inside the owner's namespace.
// URL is a deterministic function of (OwnerID, FileName).
type StorageLocator struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	OwnerID  string `json:"owner_id"`
	FileName string `json:"file_name"`
}

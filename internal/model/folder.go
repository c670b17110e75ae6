package model

// Folder is one entry of a folder listing.
type Folder struct {
	Name         string `json:"name"`
	RelativePath string `json:"relativePath,omitempty"` // scoped: "Pictures/GalleryOrganizer/<name>/"
	Dir          string `json:"dir,omitempty"`          // legacy: absolute directory
	PhotoCount   int    `json:"photoCount"`
}

// NewFolderParams holds parameters for creating a new Folder.
type NewFolderParams struct {
	Name         string
	RelativePath string
	Dir          string
	PhotoCount   int
}

// NewFolder creates a Folder.
func NewFolder(params NewFolderParams) Folder {
	return Folder{
		Name:         params.Name,
		RelativePath: params.RelativePath,
		Dir:          params.Dir,
		PhotoCount:   params.PhotoCount,
	}
}

// IsEmpty reports whether no photo currently resides in the folder.
func (f Folder) IsEmpty() bool {
	return f.PhotoCount == 0
}

package model

import "sort"

// Library is a snapshot of the folder listing and the photos found under it.
type Library struct {
	Folders []Folder `json:"folders"`
	Photos  []Photo  `json:"photos"`
}

// NewLibrary creates an empty Library with initialized slices.
func NewLibrary() *Library {
	return &Library{
		Folders: []Folder{},
		Photos:  []Photo{},
	}
}

// GetPhotosInFolder returns photos whose derived folder equals name.
// Pass "" for photos outside every folder.
func (l *Library) GetPhotosInFolder(name string) []Photo {
	var result []Photo
	for _, p := range l.Photos {
		if p.Folder == name {
			result = append(result, p)
		}
	}
	return result
}

// GetFolderByName finds a folder by name, returns nil if not found.
func (l *Library) GetFolderByName(name string) *Folder {
	for i := range l.Folders {
		if l.Folders[i].Name == name {
			return &l.Folders[i]
		}
	}
	return nil
}

// GetPhotoByID finds a photo by identifier, returns nil if not found.
func (l *Library) GetPhotoByID(id string) *Photo {
	for i := range l.Photos {
		if l.Photos[i].ID == id {
			return &l.Photos[i]
		}
	}
	return nil
}

// GetFavorites returns photos marked favorite.
func (l *Library) GetFavorites() []Photo {
	var result []Photo
	for _, p := range l.Photos {
		if p.Favorite {
			result = append(result, p)
		}
	}
	return result
}

// UniqueTags returns every tag used in the library, sorted.
func (l *Library) UniqueTags() []string {
	seen := make(map[string]bool)
	for _, p := range l.Photos {
		for _, t := range p.TagList() {
			seen[t] = true
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

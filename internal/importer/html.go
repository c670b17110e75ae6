// Package importer reads HTML albums written by the exporter back into the
// metadata record store.
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/store"
)

// ParseHTMLAlbum parses an HTML album and returns its photos. Each photo's
// Folder is the innermost heading it is listed under.
func ParseHTMLAlbum(r io.Reader) ([]model.Photo, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var photos []model.Photo

	// Track current folder stack for hierarchy
	var folderStack []string
	var pendingFolder *string // folder waiting to be pushed on next DL

	var parse func(*html.Node)
	parse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "h3":
				if name := getTextContent(n); name != "" {
					pendingFolder = &name
				}
				return

			case "a":
				id := getAttr(n, "href")
				if id == "" {
					return
				}

				p := model.Photo{
					ID:       id,
					Tags:     strings.TrimSpace(getAttr(n, "tags")),
					Date:     getAttr(n, "date"),
					Favorite: getAttr(n, "favorite") == "true",
				}
				if addDate := getAttr(n, "add_date"); addDate != "" {
					if ts, err := strconv.ParseInt(addDate, 10, 64); err == nil {
						p.CreatedAt = time.Unix(ts, 0).UnixMilli()
					}
				}
				if len(folderStack) > 0 {
					p.Folder = folderStack[len(folderStack)-1]
				}
				photos = append(photos, p)
				return

			case "dl":
				pushed := false
				if pendingFolder != nil {
					folderStack = append(folderStack, *pendingFolder)
					pendingFolder = nil
					pushed = true
				}

				for c := n.FirstChild; c != nil; c = c.NextSibling {
					parse(c)
				}

				if pushed {
					folderStack = folderStack[:len(folderStack)-1]
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			parse(c)
		}
	}

	parse(doc)
	return photos, nil
}

// Merge writes the tags and favorite flags of photos into the record store.
// Blank album tags keep the stored tags. It returns the number of photos
// merged and stops at the first failing write.
func Merge(photos []model.Photo, records *store.Photos) (int, error) {
	merged := 0
	for _, p := range photos {
		if err := records.Upsert(p.ID, p.Tags, false); err != nil {
			return merged, fmt.Errorf("merge %s: %w", p.ID, err)
		}
		if err := records.SetFavorite(p.ID, p.Favorite); err != nil {
			return merged, fmt.Errorf("merge %s: %w", p.ID, err)
		}
		merged++
	}
	return merged, nil
}

// getTextContent returns the text content of a node.
func getTextContent(n *html.Node) string {
	var text strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(text.String())
}

// getAttr returns the value of an attribute, case-insensitive.
func getAttr(n *html.Node, key string) string {
	key = strings.ToLower(key)
	for _, attr := range n.Attr {
		if strings.ToLower(attr.Key) == key {
			return attr.Val
		}
	}
	return ""
}

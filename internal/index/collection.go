package index

import (
	"path/filepath"
	"regexp"
	"strings"
)

// CollectionPrefix marks collections owned by this service. Listing
// ignores collections without it so a shared vector store can host
// other tenants.
const CollectionPrefix = "doc_"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._\-]`)

// CollectionName derives the collection for a document from its file
// path: the base name, sanitized, behind the service prefix. The same
// path always maps to the same collection, so re-uploading a document
// replaces it rather than duplicating it.
func CollectionName(filePath string) string {
	base := filepath.Base(filePath)
	base = unsafeNameChars.ReplaceAllString(base, "_")
	return CollectionPrefix + base
}

// DocumentName recovers the sanitized document name from a collection
// name; ok is false for collections not owned by this service.
func DocumentName(collection string) (string, bool) {
	if !strings.HasPrefix(collection, CollectionPrefix) {
		return "", false
	}
	return strings.TrimPrefix(collection, CollectionPrefix), true
}

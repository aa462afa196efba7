package archive

import (
	"os"
	"path/filepath"
	"strings"
)

// ArchiveRequest is the resolved target of one archive download.
type ArchiveRequest struct {
	ID  string
	Dir string
}

// Resolve maps an archive identifier to an existing directory under base.
// Identifiers are single path segments; anything that would leave base is
// reported as not found.
func Resolve(base, id string) (*ArchiveRequest, error) {
	notFound := &NotFoundError{ID: id, Message: NotFoundMessage}

	if !validID(id) {
		return nil, notFound
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, notFound
	}
	dir := filepath.Join(absBase, id)

	rel, err := filepath.Rel(absBase, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, notFound
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, notFound
	}

	return &ArchiveRequest{ID: id, Dir: dir}, nil
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	if strings.ContainsAny(id, "/\\\x00") {
		return false
	}
	return !strings.ContainsRune(id, filepath.Separator)
}

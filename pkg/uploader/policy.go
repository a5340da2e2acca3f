package uploader

import (
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Policy decides which files are accepted into a batch.
type Policy struct {
	Kind    Kind
	MaxSize int64
}

// DefaultPolicy returns the acceptance policy for the given upload kind.
func DefaultPolicy(kind Kind) Policy {
	return Policy{Kind: kind, MaxSize: MaxFileSize}
}

// Allowed MIME types per upload kind, matched case-insensitively. These
// mirror the formats the sandbox service knows how to process.
var allowedMimeTypes = map[Kind][]string{
	KindImage: {"image/jpeg", "image/png", "image/gif", "image/tiff", "image/x-icon"},
	KindMovie: {"video/mp4", "video/quicktime"},
}

// Accepts reports whether a single file passes the policy. Hidden files
// (name starting with a dot) are always rejected.
func (p Policy) Accepts(f File) bool {
	if strings.HasPrefix(path.Base(f.RelPath), ".") {
		return false
	}
	if f.Size > p.MaxSize {
		return false
	}
	return p.typeAllowed(f.MimeType)
}

func (p Policy) typeAllowed(mimeType string) bool {
	for _, allowed := range allowedMimeTypes[p.Kind] {
		if strings.EqualFold(mimeType, allowed) {
			return true
		}
	}
	return false
}

// Rejections counts filtered-out files by reason.
type Rejections struct {
	UnknownType int
	TooLarge    int
}

func (r Rejections) Total() int {
	return r.UnknownType + r.TooLarge
}

// Filter partitions files into the accepted subset and rejection counts.
// Order is preserved. Hidden files count as unknown type.
func Filter(files []File, policy Policy) ([]File, Rejections) {
	accepted := make([]File, 0, len(files))
	var rejected Rejections

	for _, f := range files {
		if strings.HasPrefix(path.Base(f.RelPath), ".") {
			rejected.UnknownType++
			continue
		}
		if !policy.typeAllowed(f.MimeType) {
			rejected.UnknownType++
			continue
		}
		if f.Size > policy.MaxSize {
			rejected.TooLarge++
			continue
		}
		accepted = append(accepted, f)
	}

	return accepted, rejected
}

// CommonRelPath derives the batch's common relative folder path from the
// first file, with the file name stripped. A batch without a derivable
// path cannot be reconciled against the server and is a fatal selection
// error.
func CommonRelPath(files []File) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("no files in batch")
	}
	dir := path.Dir(files[0].RelPath)
	if dir == "." || dir == "" || dir == "/" {
		return "", fmt.Errorf("no common relative path for %q", files[0].RelPath)
	}
	return dir, nil
}

// DiscoverFolder walks a local folder and produces the batch file list.
// Relative paths are rooted at the folder's own name, using forward
// slashes, matching what the server records.
func DiscoverFolder(root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %q: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", root)
	}

	folderName := filepath.Base(absRoot)
	var files []File
	err = filepath.Walk(absRoot, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible entries
		}
		if fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}
		files = append(files, File{
			LocalPath: p,
			RelPath:   path.Join(folderName, filepath.ToSlash(rel)),
			Size:      fi.Size(),
			MimeType:  mimeTypeOf(p),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %q: %w", root, err)
	}
	return files, nil
}

// mimeTypeOf resolves a file's MIME type from its extension. The media
// parameters, if any, are stripped.
func mimeTypeOf(p string) string {
	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return strings.TrimSpace(mt)
}

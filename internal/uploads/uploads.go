package uploads

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// PublicPrefix is the URL path uploads are served under.
const PublicPrefix = "/uploads/"

const genericMime = "application/octet-stream"

var (
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("upload exceeds size limit")
	// ErrInvalidDataURL is returned for content that is not a decodable
	// base64 data URL.
	ErrInvalidDataURL = errors.New("invalid data URL")
)

var dataURL = regexp.MustCompile(`^data:([a-zA-Z0-9]+/[a-zA-Z0-9\-.+]+);base64,(.+)$`)

// File describes a stored upload.
type File struct {
	Name       string
	PublicPath string
	MimeType   string
	Size       int64
}

// Dir stores uploaded files in a single flat directory.
type Dir struct {
	root     string
	maxBytes int64
}

// New creates the upload directory if needed.
func New(root string, maxBytes int64) (*Dir, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Dir{root: root, maxBytes: maxBytes}, nil
}

// Path returns the directory on disk.
func (d *Dir) Path() string {
	return d.root
}

// Save writes r to a new file. The MIME type is sniffed from the content
// when declared is empty or generic.
func (d *Dir) Save(r io.Reader, declared string) (*File, error) {
	src := r
	if d.maxBytes > 0 {
		src = io.LimitReader(r, d.maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, ErrTooLarge
	}
	return d.write(data, declared)
}

// IsDataURL reports whether content is a base64 data URL.
func IsDataURL(content string) bool {
	return dataURL.MatchString(content)
}

// SaveDataURL decodes a base64 data URL into a file.
func (d *Dir) SaveDataURL(content string) (*File, error) {
	m := dataURL.FindStringSubmatch(content)
	if m == nil {
		return nil, ErrInvalidDataURL
	}
	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if d.maxBytes > 0 && int64(len(data)) > d.maxBytes {
		return nil, ErrTooLarge
	}
	return d.write(data, m[1])
}

func (d *Dir) write(data []byte, declared string) (*File, error) {
	mt, _, _ := strings.Cut(declared, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))

	detected := mimetype.Detect(data)
	if mt == "" || mt == genericMime {
		mt, _, _ = strings.Cut(detected.String(), ";")
	}

	ext := ""
	if known := mimetype.Lookup(mt); known != nil {
		ext = known.Extension()
	}
	if ext == "" {
		ext = detected.Extension()
	}
	if ext == "" {
		ext = ".bin"
	}

	name := fmt.Sprintf("file-%d-%d%s", time.Now().UnixMilli(), rand.Int64N(1e9), ext)
	if err := os.WriteFile(filepath.Join(d.root, name), data, 0o600); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	return &File{
		Name:       name,
		PublicPath: PublicPrefix + name,
		MimeType:   mt,
		Size:       int64(len(data)),
	}, nil
}

// IsUpload reports whether content references a stored upload.
func IsUpload(content string) bool {
	return strings.HasPrefix(content, PublicPrefix)
}

// Remove deletes the file behind publicPath. Paths outside the upload prefix
// and files that no longer exist are ignored.
func (d *Dir) Remove(publicPath string) error {
	if !IsUpload(publicPath) {
		return nil
	}
	name := path.Base(publicPath)
	if name == "." || name == "/" || name == ".." {
		return nil
	}
	err := os.Remove(filepath.Join(d.root, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

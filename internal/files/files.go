// Package files resolves the reference documents attached to skill columns.
package files

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// File is an attached document with its content loaded. Text is the
// extracted, size-limited text that goes into prompts.
type File struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MimeType  string `json:"mimeType,omitempty"`
	Content   []byte `json:"-"`
	Text      string `json:"-"`
	Truncated bool   `json:"truncated,omitempty"`

	prepared bool
}

// Prepared reports whether Text has been extracted.
func (f File) Prepared() bool { return f.prepared }

// Prepare extracts the text of f and cuts it to the limits.
func Prepare(f File, l Limits) (File, error) {
	text, err := ExtractText(f)
	if err != nil {
		return File{}, err
	}
	excerpt, truncated, err := Excerpt(text, l)
	if err != nil {
		return File{}, err
	}
	f.Text = excerpt
	f.Truncated = truncated
	f.prepared = true
	return f, nil
}

// Resolver fetches a file by id. A nil file with a nil error means the id is
// unknown.
type Resolver interface {
	ResolveFile(ctx context.Context, id string) (*File, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id string) (*File, error)

func (f ResolverFunc) ResolveFile(ctx context.Context, id string) (*File, error) { return f(ctx, id) }

// Cache holds already-loaded files.
type Cache struct {
	mu    sync.RWMutex
	files map[string]*File
}

func NewCache() *Cache {
	return &Cache{files: make(map[string]*File)}
}

func (c *Cache) Get(id string) (*File, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.files[id]
	return f, ok
}

func (c *Cache) Put(f *File) {
	if c == nil || f == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[f.ID] = f
}

// ResolveAll loads ids in order, preferring the cache over resolver, and
// prepares each file's text under l. Files that cannot be resolved or read
// are logged and omitted.
func ResolveAll(ctx context.Context, ids []string, cache *Cache, resolver Resolver, l Limits, logger zerolog.Logger) []File {
	out := make([]File, 0, len(ids))
	for _, id := range ids {
		f, ok := cache.Get(id)
		if !ok {
			if resolver == nil {
				logger.Warn().Str("file_id", id).Msg("No file resolver configured, skipping attachment")
				continue
			}
			var err error
			f, err = resolver.ResolveFile(ctx, id)
			if err != nil {
				logger.Warn().Err(err).Str("file_id", id).Msg("Failed to resolve attached file, skipping")
				continue
			}
			if f == nil {
				logger.Warn().Str("file_id", id).Msg("Attached file not found, skipping")
				continue
			}
		}
		if !f.prepared {
			pf, err := Prepare(*f, l)
			if err != nil {
				logger.Warn().Err(err).Str("file_id", id).Str("mime_type", f.MimeType).Msg("Attached file has no usable text, skipping")
				continue
			}
			if pf.Truncated {
				logger.Debug().Str("file_id", id).Int("max_chars", l.withDefaults().MaxRunes).Msg("Attached file cut to fit the prompt")
			}
			f = &pf
			cache.Put(f)
		}
		out = append(out, *f)
	}
	return out
}

// Names returns the display names of fs.
func Names(fs []File) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// IDs returns the ids of fs.
func IDs(fs []File) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}

// DirResolver serves files stored as <root>/<id>.
type DirResolver struct {
	Root string
}

func (d DirResolver) ResolveFile(ctx context.Context, id string) (*File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := filepath.Base(id)
	if name != id || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid file id %q", id)
	}
	data, err := os.ReadFile(filepath.Join(d.Root, name))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &File{ID: id, Name: name, MimeType: mime.TypeByExtension(filepath.Ext(name)), Content: data}, nil
}

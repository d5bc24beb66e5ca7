package vault

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"vfm-go/internal/vfm"
)

// URLPrefix starts every object URL minted by a URLRegistry.
const URLPrefix = "blob:vfm/"

// URLRegistry holds the blobs behind outstanding object URLs. A URL keeps
// a snapshot of the bytes it was minted for until it is released, even if
// the blob is deleted meanwhile. Safe for concurrent use.
type URLRegistry struct {
	mu      sync.Mutex
	entries map[string]*vfm.StoredBlob
}

func NewURLRegistry() *URLRegistry {
	return &URLRegistry{entries: make(map[string]*vfm.StoredBlob)}
}

// Mint registers blob and returns a URL for it.
func (r *URLRegistry) Mint(blob *vfm.StoredBlob) *vfm.ObjectURL {
	token := uuid.NewString()

	r.mu.Lock()
	r.entries[token] = blob
	r.mu.Unlock()

	url := URLPrefix + token
	return vfm.NewObjectURL(url, func() { r.Release(url) })
}

// Resolve returns the blob behind url, which may also be given as the
// bare token.
func (r *URLRegistry) Resolve(url string) (*vfm.StoredBlob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	blob, ok := r.entries[token(url)]
	return blob, ok
}

// Release forgets url. It reports whether url was outstanding.
func (r *URLRegistry) Release(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := token(url)
	if _, ok := r.entries[t]; !ok {
		return false
	}
	delete(r.entries, t)
	return true
}

// Outstanding counts the URLs minted and not yet released.
func (r *URLRegistry) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func token(url string) string {
	return strings.TrimPrefix(url, URLPrefix)
}

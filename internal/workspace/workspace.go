// Package workspace tracks the client's workspace folders and derives the
// root that scopes library resolution for a document.
package workspace

import (
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
)

// Folders is the set of workspace folder URIs announced by the client.
type Folders struct {
	mu      sync.RWMutex
	folders []string
}

func NewFolders(uris ...string) *Folders {
	f := &Folders{}
	f.Add(uris...)
	return f
}

func (f *Folders) Add(uris ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uri := range uris {
		uri = normalize(uri)
		if uri == "" || slices.Contains(f.folders, uri) {
			continue
		}
		f.folders = append(f.folders, uri)
	}
}

func (f *Folders) Remove(uris ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, uri := range uris {
		uri = normalize(uri)
		f.folders = slices.DeleteFunc(f.folders, func(s string) bool { return s == uri })
	}
}

func (f *Folders) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.folders)
}

// Root returns the workspace root of uri: the deepest workspace folder
// containing it, or the uri's parent directory when no folder does.
func (f *Folders) Root(uri string) string {
	uri = normalize(uri)

	f.mu.RLock()
	best := ""
	for _, folder := range f.folders {
		if strings.HasPrefix(uri, folder+"/") && len(folder) > len(best) {
			best = folder
		}
	}
	f.mu.RUnlock()

	if best != "" {
		return best
	}
	return Parent(uri)
}

// Parent truncates uri to its directory.
func Parent(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Path == "" {
		i := strings.LastIndex(uri, "/")
		if i < 0 {
			return uri
		}
		return uri[:i]
	}
	u.Path = path.Dir(u.Path)
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return normalize(u.String())
}

func normalize(uri string) string {
	return strings.TrimRight(strings.TrimSpace(uri), "/")
}

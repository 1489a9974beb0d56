// scanner is used to scan a directory for library sources.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("cqlls.scanner")

// Scan walks the entire subtree under root. Any file or directory whose name
// begins with "." is skipped entirely. For each remaining file the skip
// predicate is applied, and if it returns false the file is read and
// callback(path, contents) invoked. Scan returns once all callbacks have
// completed or ctx is done.
func Scan(
	ctx context.Context,
	root string,
	skip func(path string, info fs.FileInfo) bool,
	callback func(path string, document []byte),
) error {
	fileCh := make(chan string, 100)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileCh {
			data, err := os.ReadFile(path)
			if err != nil {
				log.Warningf("read error: %s: %s", path, err)
				continue
			}
			callback(path, data)
		}
	}()

	log.Debugf("starting walk at %q", root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warningf("walk error: %s", err)
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if hidden(path, root) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if skip != nil && skip(path, info) {
			return nil
		}

		select {
		case fileCh <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	close(fileCh)
	wg.Wait()
	return err
}

func hidden(path, root string) bool {
	if path == root {
		return false
	}
	return strings.HasPrefix(filepath.Base(path), ".")
}

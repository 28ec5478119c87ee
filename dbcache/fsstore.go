package dbcache

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
)

const (
	tmpSuffix    = ".tmp"
	tombstoneExt = ".notfound"
	redirectExt  = ".redirect"
)

// FSStore is a datastore that keeps each value in its own file under a root
// directory. Key namespaces map to subdirectories and values get the store's
// file extension, so with extension "xml" the key /iso/iso_1 is stored in the
// file <root>/iso/iso_1.xml. Tombstones and redirects are stored with the
// extensions .notfound and .redirect. Version stamps have no extension.
type FSStore struct {
	mu   sync.RWMutex
	root string
	ext  string
}

var _ datastore.Datastore = (*FSStore)(nil)

// NewFSStore creates the root directory if needed and returns a store over
// it. Values are written to files with extension ext; an empty ext stores
// every value under the bare key path.
func NewFSStore(root, ext string) (*FSStore, error) {
	if root == "" {
		return nil, errors.New("empty cache directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext != "" {
		ext = "." + ext
	}
	return &FSStore{root: root, ext: ext}, nil
}

// Root returns the directory holding the store.
func (s *FSStore) Root() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root
}

func (s *FSStore) bare(key datastore.Key) bool {
	return s.ext == "" || key.BaseNamespace() == versionName
}

// exts returns the extensions a file holding key may have.
func (s *FSStore) exts(key datastore.Key) []string {
	if s.bare(key) {
		return []string{""}
	}
	return []string{s.ext, tombstoneExt, redirectExt}
}

func (s *FSStore) extOf(key datastore.Key, value []byte) string {
	switch {
	case s.bare(key):
		return ""
	case bytes.HasPrefix(value, []byte(tombstoneMarker)):
		return tombstoneExt
	case bytes.HasPrefix(value, []byte(redirectMarker+" ")):
		return redirectExt
	}
	return s.ext
}

func (s *FSStore) path(key datastore.Key) string {
	return filepath.Join(s.root, filepath.FromSlash(key.String()))
}

// find returns the name and info of the file holding key.
func (s *FSStore) find(key datastore.Key) (string, fs.FileInfo, error) {
	base := s.path(key)
	for _, ext := range s.exts(key) {
		fi, err := os.Stat(base + ext)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", nil, err
		}
		if fi.IsDir() {
			continue
		}
		return base + ext, fi, nil
	}
	return "", nil, datastore.ErrNotFound
}

func (s *FSStore) Get(ctx context.Context, key datastore.Key) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, _, err := s.find(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, datastore.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *FSStore) Has(ctx context.Context, key datastore.Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, _, err := s.find(key)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FSStore) GetSize(ctx context.Context, key datastore.Key) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, fi, err := s.find(key)
	if err != nil {
		return -1, err
	}
	return int(fi.Size()), nil
}

// Put writes the value to a temporary file and renames it into place, so
// readers never see a partial value. A file holding the previous value under
// another extension is removed.
func (s *FSStore) Put(ctx context.Context, key datastore.Key, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	base := s.path(key)
	ext := s.extOf(key, value)
	name := base + ext
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+"-*"+tmpSuffix)
	if err != nil {
		return err
	}
	if _, err = tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err = os.Rename(tmp.Name(), name); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	for _, other := range s.exts(key) {
		if other == ext {
			continue
		}
		if err = os.Remove(base + other); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *FSStore) Delete(ctx context.Context, key datastore.Key) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	base := s.path(key)
	var errs error
	for _, ext := range s.exts(key) {
		if err := os.Remove(base + ext); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// Query walks the store one directory at a time. Values are read as results
// are consumed.
func (s *FSStore) Query(ctx context.Context, q query.Query) (query.Results, error) {
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()

	dir := root
	if q.Prefix != "" {
		dir = filepath.Join(root, filepath.FromSlash(datastore.NewKey(q.Prefix).String()))
	}
	w := &walker{
		ctx:      ctx,
		s:        s,
		root:     root,
		keysOnly: q.KeysOnly,
		dirs:     []string{dir},
	}
	results := query.ResultsFromIterator(q, query.Iterator{
		Next:  w.next,
		Close: w.close,
	})
	return query.NaiveQueryApply(q, results), nil
}

// keyOf returns the datastore key of the file name under root, and false if
// the file does not hold a value of this store.
func (s *FSStore) keyOf(root, name string) (string, bool) {
	rel, err := filepath.Rel(root, name)
	if err != nil {
		return "", false
	}
	key := "/" + filepath.ToSlash(rel)
	if s.ext == "" || filepath.Base(rel) == versionName {
		return key, true
	}
	for _, ext := range []string{s.ext, tombstoneExt, redirectExt} {
		if strings.HasSuffix(key, ext) {
			return strings.TrimSuffix(key, ext), true
		}
	}
	return "", false
}

func (s *FSStore) Sync(ctx context.Context, prefix datastore.Key) error {
	return nil
}

func (s *FSStore) Close() error {
	return nil
}

// Move renames the root directory to newRoot.
func (s *FSStore) Move(newRoot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(newRoot), 0o755); err != nil {
		return err
	}
	if err := os.Rename(s.root, newRoot); err != nil {
		return err
	}
	s.root = newRoot
	return nil
}

// walker lists the files of a store breadth first, reading one directory
// per step.
type walker struct {
	ctx      context.Context
	s        *FSStore
	root     string
	keysOnly bool
	dirs     []string
	files    []string
	done     bool
}

func (w *walker) next() (query.Result, bool) {
	w.s.mu.RLock()
	defer w.s.mu.RUnlock()
	for !w.done {
		if err := w.ctx.Err(); err != nil {
			w.done = true
			return query.Result{Error: err}, true
		}
		if len(w.files) != 0 {
			name := w.files[0]
			w.files = w.files[1:]
			key, ok := w.s.keyOf(w.root, name)
			if !ok {
				continue
			}
			ent := query.Entry{Key: key}
			if !w.keysOnly {
				data, err := os.ReadFile(name)
				if err != nil {
					if errors.Is(err, fs.ErrNotExist) {
						continue
					}
					w.done = true
					return query.Result{Error: err}, true
				}
				ent.Value = data
				ent.Size = len(data)
			}
			return query.Result{Entry: ent}, true
		}
		if len(w.dirs) == 0 {
			w.done = true
			break
		}
		dir := w.dirs[0]
		w.dirs = w.dirs[1:]
		des, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			w.done = true
			return query.Result{Error: err}, true
		}
		for _, de := range des {
			name := filepath.Join(dir, de.Name())
			switch {
			case de.IsDir():
				w.dirs = append(w.dirs, name)
			case !strings.HasSuffix(name, tmpSuffix):
				w.files = append(w.files, name)
			}
		}
	}
	return query.Result{}, false
}

func (w *walker) close() error {
	w.done = true
	return nil
}

// Copyright 2025 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filesys

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// InMemNowFunc supplies the clock for modification times; swap it out for
// reproducible tests.
var InMemNowFunc = time.Now

// InMemFS is an in-memory Filesys implementation intended for testing.
type InMemFS struct {
	mu    sync.RWMutex
	cwd   string
	files map[string][]byte
	dirs  map[string]bool
	mtime map[string]time.Time
}

var _ Filesys = (*InMemFS)(nil)

// EmptyInMemFS creates an empty in-memory filesystem rooted at workingDir
// ("/" when empty).
func EmptyInMemFS(workingDir string) *InMemFS {
	if workingDir == "" {
		workingDir = "/"
	}
	return &InMemFS{
		cwd:   workingDir,
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
		mtime: make(map[string]time.Time),
	}
}

// NewInMemFS creates an in-memory filesystem seeded with files, whose keys
// are paths relative to cwd or absolute.
func NewInMemFS(files map[string][]byte, cwd string) *InMemFS {
	fs := EmptyInMemFS(cwd)
	for path, data := range files {
		abs := fs.abs(path)
		fs.mkParents(abs)
		fs.files[abs] = append([]byte(nil), data...)
		fs.mtime[abs] = InMemNowFunc()
	}
	return fs
}

func (fs *InMemFS) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Clean(filepath.Join(fs.cwd, path))
}

func (fs *InMemFS) mkParents(abs string) {
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if fs.dirs[dir] {
			break
		}
		fs.dirs[dir] = true
		if dir == filepath.Dir(dir) {
			break
		}
	}
}

func (fs *InMemFS) Exists(path string) (bool, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	abs := fs.abs(path)
	if _, ok := fs.files[abs]; ok {
		return true, false
	}
	if fs.dirs[abs] {
		return true, true
	}
	return false, false
}

func (fs *InMemFS) ReadFile(fp string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, ok := fs.files[fs.abs(fp)]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (fs *InMemFS) OpenForRead(fp string) (io.ReadCloser, error) {
	data, err := fs.ReadFile(fp)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (fs *InMemFS) WriteFile(fp string, data []byte, _ os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	abs := fs.abs(fp)
	if fs.dirs[abs] {
		return ErrIsDir
	}
	fs.mkParents(abs)
	fs.files[abs] = append([]byte(nil), data...)
	fs.mtime[abs] = InMemNowFunc()
	return nil
}

type inMemWriter struct {
	buf bytes.Buffer
	fs  *InMemFS
	fp  string
}

func (w *inMemWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *inMemWriter) Close() error {
	return w.fs.WriteFile(w.fp, w.buf.Bytes(), os.ModePerm)
}

func (fs *InMemFS) OpenForWrite(fp string, _ os.FileMode) (io.WriteCloser, error) {
	return &inMemWriter{fs: fs, fp: fp}, nil
}

func (fs *InMemFS) MkDirs(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	abs := fs.abs(path)
	fs.mkParents(abs)
	fs.dirs[abs] = true
	return nil
}

func (fs *InMemFS) DeleteFile(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	abs := fs.abs(path)
	if fs.dirs[abs] {
		return ErrIsDir
	}
	if _, ok := fs.files[abs]; !ok {
		return os.ErrNotExist
	}
	delete(fs.files, abs)
	delete(fs.mtime, abs)
	return nil
}

func (fs *InMemFS) MoveFile(srcPath, destPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	src, dest := fs.abs(srcPath), fs.abs(destPath)
	data, ok := fs.files[src]
	if !ok {
		return os.ErrNotExist
	}
	fs.mkParents(dest)
	fs.files[dest] = data
	fs.mtime[dest] = InMemNowFunc()
	delete(fs.files, src)
	delete(fs.mtime, src)
	return nil
}

func (fs *InMemFS) Abs(path string) (string, error) {
	return fs.abs(path), nil
}

func (fs *InMemFS) LastModified(path string) (time.Time, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	t, ok := fs.mtime[fs.abs(path)]
	return t, ok
}

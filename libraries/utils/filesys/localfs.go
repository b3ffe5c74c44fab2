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
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// LocalFS is the machine's local filesystem.
var LocalFS Filesys = &localFS{}

type localFS struct{}

func (fs *localFS) Exists(path string) (exists bool, isDir bool) {
	stat, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	return true, stat.IsDir()
}

func (fs *localFS) OpenForRead(fp string) (io.ReadCloser, error) {
	if exists, isDir := fs.Exists(fp); !exists {
		return nil, os.ErrNotExist
	} else if isDir {
		return nil, ErrIsDir
	}
	return os.Open(fp)
}

func (fs *localFS) ReadFile(fp string) ([]byte, error) {
	return os.ReadFile(fp)
}

func (fs *localFS) OpenForWrite(fp string, perm os.FileMode) (io.WriteCloser, error) {
	return os.OpenFile(fp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
}

// WriteFile stages the data in a sibling temp file and renames it over fp,
// so readers and crash recovery only ever see a complete file.
func (fs *localFS) WriteFile(fp string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(fp)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fp)+".tmp-")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, perm)
	}
	if err == nil {
		err = os.Rename(tmpName, fp)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "writing %s", fp)
	}
	return nil
}

func (fs *localFS) MkDirs(path string) error {
	if _, err := os.Stat(path); err != nil {
		return os.MkdirAll(path, os.ModePerm)
	}
	return nil
}

func (fs *localFS) DeleteFile(path string) error {
	if exists, isDir := fs.Exists(path); !exists {
		return os.ErrNotExist
	} else if isDir {
		return ErrIsDir
	}
	return os.Remove(path)
}

func (fs *localFS) MoveFile(srcPath, destPath string) error {
	return os.Rename(srcPath, destPath)
}

func (fs *localFS) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

func (fs *localFS) LastModified(path string) (time.Time, bool) {
	stat, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return stat.ModTime(), true
}

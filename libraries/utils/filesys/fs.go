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

// Package filesys abstracts the filesystem operations the sync engine
// performs so state and config handling can run against an in-memory
// implementation in tests.
package filesys

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
)

var ErrIsDir = errors.New("operation not valid on a directory")

// ReadableFS provides read access to files.
type ReadableFS interface {
	// OpenForRead opens a file for reading.
	OpenForRead(fp string) (io.ReadCloser, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(fp string) ([]byte, error)

	// Exists tells you whether a path exists, and if so whether it is a
	// directory.
	Exists(path string) (exists bool, isDir bool)

	// Abs converts a path to an absolute path.
	Abs(path string) (string, error)

	// LastModified gets the modification time of a path.
	LastModified(path string) (t time.Time, exists bool)
}

// WritableFS provides write access to files.
type WritableFS interface {
	// OpenForWrite opens a file for writing, creating or truncating it.
	OpenForWrite(fp string, perm os.FileMode) (io.WriteCloser, error)

	// WriteFile writes data to fp atomically: either the whole new content
	// becomes visible or the previous content stays.
	WriteFile(fp string, data []byte, perm os.FileMode) error

	// MkDirs creates a directory and any missing parents.
	MkDirs(path string) error

	// DeleteFile removes a file.
	DeleteFile(path string) error

	// MoveFile renames srcPath to destPath.
	MoveFile(srcPath, destPath string) error
}

// Filesys is a filesystem a sync run can keep its state on.
type Filesys interface {
	ReadableFS
	WritableFS
}

// UnmarshalJSONFile reads the file at path and decodes it into dest.
func UnmarshalJSONFile(fs ReadableFS, path string, dest interface{}) error {
	data, err := fs.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Package archive models a tarball as an ordered list of in-memory items, so
// the artifact saver can snapshot the dependency cache and stream it out in a
// single pass.
package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

type (
	// Archive contains an ordered list of Item objects, much like a tarball.
	Archive []Item
)

// Item is an in-memory representation of a file. It contains the content and
// additional metadata of a file.
type Item struct {
	// Path should include the filename. For directories, it should not end
	// in a '/'.
	Path string
	// Type should match the tar.Header.Typeflag values.
	Type         byte
	Content      []byte
	FileMode     os.FileMode
	ModifiedTime time.Time
	UserID       int
	GroupID      int
}

// BaseName returns the base name of the file.
func (i *Item) BaseName() string {
	return path.Base(i.Path)
}

// IsDir returns if the file is a directory.
func (i *Item) IsDir() bool {
	return i.Type == tar.TypeDir
}

// ContainsPath returns if an Item with the exact path given is present in an
// Archive.
func (ar Archive) ContainsPath(path string) bool {
	for _, file := range ar {
		if file.Path == path {
			return true
		}
	}
	return false
}

// FromDisk walks root and snapshots its regular files and directories into an
// Archive. Item paths are relative and rooted at the base name of root, so
// unpacking the archive recreates the directory itself.
func FromDisk(root string) (Archive, error) {
	var ar Archive
	base := filepath.Base(root)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		name := base
		if rel != "." {
			name = path.Join(base, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		item := Item{
			Path:         name,
			FileMode:     info.Mode().Perm(),
			ModifiedTime: info.ModTime(),
		}
		switch {
		case d.IsDir():
			item.Type = tar.TypeDir
		case info.Mode().IsRegular():
			item.Type = tar.TypeReg
			if item.Content, err = os.ReadFile(p); err != nil {
				return err
			}
		default:
			// Sockets, devices and the like have no business in a
			// dependency cache.
			return nil
		}
		ar = append(ar, item)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "snapshotting %s", root)
	}
	return ar, nil
}

// Write writes the archive as a tarfile to the given Writer.
func Write(ar Archive, writer io.Writer) error {
	w := tar.NewWriter(writer)

	for _, item := range ar {
		if err := w.WriteHeader(&tar.Header{
			Typeflag: item.Type,
			Name:     item.Path,
			Mode:     int64(item.FileMode),
			Size:     int64(len(item.Content)),
			Uid:      item.UserID,
			Gid:      item.GroupID,
			ModTime:  item.ModifiedTime,
		}); err != nil {
			return err
		}
		if _, err := io.Copy(w, bytes.NewBuffer(item.Content)); err != nil {
			return err
		}
	}

	return w.Close()
}

// FromTar converts a tarfile (in bytes) to an Archive.
func FromTar(tarfile []byte) (Archive, error) {
	tarReader := tar.NewReader(bytes.NewReader(tarfile))

	var ar Archive
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		item := Item{
			Path:         header.Name,
			Type:         header.Typeflag,
			FileMode:     os.FileMode(header.Mode),
			ModifiedTime: header.ModTime,
			UserID:       header.Uid,
			GroupID:      header.Gid,
		}
		if header.Typeflag == tar.TypeReg {
			if item.Content, err = io.ReadAll(tarReader); err != nil {
				return nil, err
			}
		}
		ar = append(ar, item)
	}

	return ar, nil
}

package convert

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var rename = os.Rename

// pendingFile is one output of a conversion run
type pendingFile struct {
	path  string
	write func(w io.Writer) error
}

// writeFiles writes every file to a temporary sibling and renames them all
// into place once every write has succeeded. On error no output is left
// behind: files already renamed are put back the way they were.
func writeFiles(files ...pendingFile) (err error) {
	var (
		temps   = make([]*os.File, 0, len(files))
		backups = make([]string, len(files))
		placed  = 0
	)
	defer func() {
		if err == nil {
			for _, b := range backups {
				if b != "" {
					os.Remove(b)
				}
			}
			return
		}
		for i := placed - 1; i >= 0; i-- {
			os.Remove(files[i].path)
			if backups[i] != "" {
				rename(backups[i], files[i].path)
			}
		}
		for _, tmp := range temps {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	for _, f := range files {
		var info os.FileInfo
		if info, err = os.Stat(f.path); err == nil && info.IsDir() {
			return errors.Errorf("%s is a directory", f.path)
		}
		var tmp *os.File
		if tmp, err = os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*"); err != nil {
			return errors.Wrapf(err, "creating %s", f.path)
		}
		temps = append(temps, tmp)
		if err = f.write(tmp); err != nil {
			return
		}
		if err = tmp.Chmod(0o644); err != nil {
			return errors.Wrapf(err, "writing %s", f.path)
		}
		if err = tmp.Close(); err != nil {
			return errors.Wrapf(err, "writing %s", f.path)
		}
	}
	for i, f := range files {
		if _, serr := os.Lstat(f.path); serr == nil {
			backup := temps[i].Name() + ".orig"
			if err = rename(f.path, backup); err != nil {
				return errors.Wrapf(err, "moving aside %s", f.path)
			}
			backups[i] = backup
		}
		if err = rename(temps[i].Name(), f.path); err != nil {
			if backups[i] != "" {
				rename(backups[i], f.path)
				backups[i] = ""
			}
			return errors.Wrapf(err, "renaming into %s", f.path)
		}
		placed = i + 1
	}
	return
}

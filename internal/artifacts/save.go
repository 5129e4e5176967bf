// Package artifacts implements the save-artifacts side of incremental builds:
// it snapshots the dependency cache as a tar stream for the build tool to
// store and feed back into the next assemble.
package artifacts

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/aisandeep/superai-sdk/internal/options"
	"github.com/aisandeep/superai-sdk/pkg/archive"
)

// Save writes a tar archive of the dependency cache directory to w. An absent
// cache directory is the first-build case: nothing is written and no error is
// returned. Diagnostics go to the logger, never to w, which the build tool
// consumes verbatim.
func Save(w io.Writer, opts options.SaveOptions) error {
	log := logrus.WithField("component", "save-artifacts")

	info, err := os.Stat(opts.PipCacheDir)
	switch {
	case os.IsNotExist(err):
		log.Debugf("no dependency cache at %s, nothing to save", opts.PipCacheDir)
		return nil
	case err != nil:
		return errors.Wrapf(err, "checking dependency cache at %s", opts.PipCacheDir)
	case !info.IsDir():
		return errors.Errorf("dependency cache %s is not a directory", opts.PipCacheDir)
	}

	ar, err := archive.FromDisk(opts.PipCacheDir)
	if err != nil {
		return err
	}

	log.Debugf("saving %d cache entries from %s", len(ar), opts.PipCacheDir)
	return errors.Wrap(archive.Write(ar, w), "writing dependency cache archive")
}

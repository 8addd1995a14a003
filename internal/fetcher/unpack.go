package fetcher

import (
	"archive/tar"    // For reading .tar archives
	"archive/zip"    // For reading .zip archives
	"compress/bzip2" // For reading .bz2 compressed data
	"compress/gzip"  // For reading .gz compressed data
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip" // For reading .7z archives
	"github.com/xi2/xz"          // For reading .xz compressed data

	"autopkg-setup/internal/logger"
)

// archiveSuffixes lists the release asset formats LocatePackage can open,
// longest first so ".tar.gz" wins over ".gz"-style matches.
var archiveSuffixes = []string{".tar.bz2", ".tar.gz", ".tar.xz", ".tgz", ".tar", ".zip", ".7z"}

// errFound stops the directory walk once a package has been located.
var errFound = errors.New("found")

// IsPackage reports whether path names a macOS installer package.
func IsPackage(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".pkg") || strings.HasSuffix(lower, ".mpkg")
}

// ArchiveSuffix returns the archive extension of path, or "" when the file
// is not an archive this package can extract.
func ArchiveSuffix(path string) string {
	lower := strings.ToLower(path)
	for _, ext := range archiveSuffixes {
		if strings.HasSuffix(lower, ext) {
			return ext
		}
	}
	return ""
}

// LocatePackage returns the installer package to hand to /usr/sbin/installer.
// A .pkg is returned as is; an archive is extracted into workDir and the
// first package inside it is returned.
func LocatePackage(src, workDir string) (string, error) {
	if IsPackage(src) {
		return src, nil
	}
	if ArchiveSuffix(src) == "" {
		return "", fmt.Errorf("%s is neither an installer package nor a supported archive", filepath.Base(src))
	}

	if err := ExtractArchive(src, workDir); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", src, err)
	}

	var found string
	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Bundle-style packages are directories; flat packages are files.
		if path != workDir && IsPackage(d.Name()) {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no installer package inside %s", filepath.Base(src))
	}

	logger.Debug("[DEBUG] Located package %s inside %s\n", found, src)
	return found, nil
}

// ExtractArchive routes to the extraction function for the archive type.
func ExtractArchive(src, dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}

	switch ext := ArchiveSuffix(src); ext {
	case ".zip":
		logger.Debug("[DEBUG] compression type is zip\n")
		return extractZip(src, dest)
	case ".7z":
		logger.Debug("[DEBUG] compression type is .7z\n")
		return extract7z(src, dest)
	case ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz":
		logger.Debug("[DEBUG] compression type is %s\n", ext)
		return extractTar(src, dest, ext)
	default:
		return fmt.Errorf("unsupported archive format: %s", src)
	}
}

// safeJoin resolves an archive entry name under dest and rejects entries
// that would land outside of it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes %s", name, dest)
	}
	return target, nil
}

// writeEntry copies r into a new file at target, creating parent directories.
func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// extractTar handles plain and compressed tar variants.
func extractTar(src, dest, ext string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	switch ext {
	case ".tar.gz", ".tgz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gr.Close()
		reader = gr
	case ".tar.bz2":
		reader = bzip2.NewReader(f)
	case ".tar.xz":
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			return err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		default:
			logger.Debug("[DEBUG] Skipping tar entry %s (type %c)\n", hdr.Name, hdr.Typeflag)
		}
	}
}

// extractZip extracts a .zip archive.
func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeEntry(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extract7z handles .7z extraction using the sevenzip library.
func extract7z(src, dest string) error {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeEntry(target, rc, f.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

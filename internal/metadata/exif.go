// Package metadata embeds capture metadata into images and keeps the
// per-project capture ledger.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// ExifTimeLayout is the EXIF DateTime format
const ExifTimeLayout = "2006:01:02 15:04:05"

// EmbedInfo is the metadata written into a captured image
type EmbedInfo struct {
	Copyright string
	Creator   string
	Timestamp time.Time
	Device    string
	Caption   string
	Title     string
	Software  string
}

// Embedder writes metadata into an image file in place
type Embedder interface {
	BuildAndEmbed(imagePath string, info EmbedInfo) error
}

// ExifEmbedder embeds EXIF tags into JPEG files
type ExifEmbedder struct{}

// NewExifEmbedder creates an ExifEmbedder
func NewExifEmbedder() *ExifEmbedder {
	return &ExifEmbedder{}
}

// BuildAndEmbed rewrites imagePath with the EXIF tags for info. The file is
// replaced atomically; on error the original is left untouched.
func (e *ExifEmbedder) BuildAndEmbed(imagePath string, info EmbedInfo) error {
	parsed, err := jpegstructure.NewJpegMediaParser().ParseFile(imagePath)
	if err != nil {
		return fmt.Errorf("parse jpeg %s: %w", imagePath, err)
	}
	sl, ok := parsed.(*jpegstructure.SegmentList)
	if !ok {
		return fmt.Errorf("parse jpeg %s: unexpected media context %T", imagePath, parsed)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		rootIb, err = newRootBuilder()
		if err != nil {
			return err
		}
	}

	ifd0, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD0")
	if err != nil {
		return fmt.Errorf("exif IFD0: %w", err)
	}

	stamp := info.Timestamp.Local().Format(ExifTimeLayout)
	ifd0Tags := []struct{ name, value string }{
		{"ImageDescription", info.Caption},
		{"Model", info.Device},
		{"Software", info.Software},
		{"DateTime", stamp},
		{"Artist", info.Creator},
		{"Copyright", info.Copyright},
		{"DocumentName", info.Title},
	}
	for _, tag := range ifd0Tags {
		if tag.value == "" {
			continue
		}
		if err := ifd0.SetStandardWithName(tag.name, tag.value); err != nil {
			return fmt.Errorf("set %s: %w", tag.name, err)
		}
	}

	exifIfd, err := exif.GetOrCreateIbFromRootIb(rootIb, "IFD/Exif")
	if err != nil {
		return fmt.Errorf("exif sub-IFD: %w", err)
	}
	if err := exifIfd.SetStandardWithName("DateTimeOriginal", stamp); err != nil {
		return fmt.Errorf("set DateTimeOriginal: %w", err)
	}

	if err := sl.SetExif(rootIb); err != nil {
		return fmt.Errorf("attach exif: %w", err)
	}

	return writeAtomically(imagePath, func(f *os.File) error {
		return sl.Write(f)
	})
}

func newRootBuilder() (*exif.IfdBuilder, error) {
	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		return nil, fmt.Errorf("exif ifd mapping: %w", err)
	}
	ti := exif.NewTagIndex()
	return exif.NewIfdBuilder(im, ti, exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}

// writeAtomically writes through a temp file in the same directory and
// renames it over path
func writeAtomically(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// WriteFileAtomically exposes the temp-file-and-rename write for other packages
func WriteFileAtomically(path string, write func(f *os.File) error) error {
	return writeAtomically(path, write)
}

package notify

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Bundle compresses the attachments into one zip archive at dst and returns
// it as a single attachment.
func Bundle(atts []Attachment, dst string) (Attachment, error) {
	out, err := os.Create(dst)
	if err != nil {
		return Attachment{}, fmt.Errorf("creating archive: %w", err)
	}
	zipWriter := zip.NewWriter(out)

	for _, a := range atts {
		if err := addToZip(zipWriter, a.Path); err != nil {
			zipWriter.Close()
			out.Close()
			os.Remove(dst)
			return Attachment{}, err
		}
	}

	if err := zipWriter.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return Attachment{}, fmt.Errorf("closing zip writer: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return Attachment{}, fmt.Errorf("closing archive: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return Attachment{}, fmt.Errorf("reading archive size: %w", err)
	}
	return Attachment{Path: dst, Size: info.Size()}, nil
}

func addToZip(zipWriter *zip.Writer, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("opening %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("getting file info %s: %w", file, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("creating header %s: %w", file, err)
	}
	header.Name = filepath.Base(file)
	header.Method = zip.Deflate

	writer, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("creating zip entry %s: %w", file, err)
	}
	if _, err := io.Copy(writer, f); err != nil {
		return fmt.Errorf("writing %s to zip: %w", file, err)
	}
	return nil
}

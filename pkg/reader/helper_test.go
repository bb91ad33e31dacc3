package reader

import (
	"os"

	"github.com/klauspost/compress/gzip"
)

// writeGzip writes content gzip-framed, standing in for files produced by
// external tooling
func writeGzip(path, content string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(file)
	if _, err := gw.Write([]byte(content)); err != nil {
		file.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

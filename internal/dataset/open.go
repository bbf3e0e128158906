package dataset

import (
	"bytes"
	"io"
	"os"
)

var (
	magicClassic = []byte("CDF")
	magicHDF     = []byte("\x89HDF")
)

// Open reads the dataset at path into memory. The format is chosen from the
// file's magic bytes: NetCDF classic (CDF-1, CDF-2) or NetCDF-4/HDF5.
// Every failure is a *LoadError.
func Open(path string) (*Dataset, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, loadErr(path, "opening file", err)
	}
	defer fh.Close()

	magic := make([]byte, 4)
	if _, err := io.ReadFull(fh, magic); err != nil {
		return nil, loadErr(path, "reading file signature", err)
	}

	switch {
	case bytes.HasPrefix(magic, magicClassic) && (magic[3] == 1 || magic[3] == 2):
		return openClassic(path, fh)
	case bytes.Equal(magic, magicHDF):
		return openHDF(path)
	}
	return nil, loadErr(path, "unrecognised file format (not NetCDF classic or NetCDF-4)", nil)
}

package utils

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
)

var (
	ErrImageMissing = errors.New("image file does not exist")
	ErrNotAnImage   = errors.New("file is not a supported image")
)

var supportedImages = map[string]bool{
	"jpg":  true,
	"png":  true,
	"gif":  true,
	"webp": true,
}

// headerSize is the number of bytes filetype needs to match any format.
const headerSize = 261

// DetectImage sniffs the file header and returns its type when it is a
// supported image.
func DetectImage(path string) (types.Type, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Unknown, fmt.Errorf("%w: %s", ErrImageMissing, path)
		}
		return types.Unknown, err
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return types.Unknown, err
	}

	kind, err := filetype.Match(head[:n])
	if err != nil {
		return types.Unknown, err
	}
	if kind == filetype.Unknown || !supportedImages[kind.Extension] {
		return types.Unknown, fmt.Errorf("%w: %s", ErrNotAnImage, path)
	}
	return kind, nil
}

func ValidateImage(path string) error {
	_, err := DetectImage(path)
	return err
}

func ImageExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

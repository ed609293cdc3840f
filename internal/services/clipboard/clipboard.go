// Package clipboard copies rendered artifacts to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"os"

	"github.com/atotto/clipboard"
)

const errorReadArtifactFormat = "reading %s for clipboard: %w"

// ErrUnsupported is returned when no clipboard utility is available.
var ErrUnsupported = errors.New("clipboard unavailable: no xsel, xclip or wl-copy found")

// Copier copies textual data to the system clipboard.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct {
	writeAll func(string) error
}

// NewService constructs a Service backed by the system clipboard.
func NewService() *Service {
	return &Service{writeAll: clipboard.WriteAll}
}

// Copy writes text to the system clipboard.
func (service *Service) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnsupported
	}
	return service.writeAll(text)
}

// CopyFile copies the contents of the artifact at path using copier.
func CopyFile(copier Copier, path string) error {
	// #nosec G304
	content, readError := os.ReadFile(path)
	if readError != nil {
		return fmt.Errorf(errorReadArtifactFormat, path, readError)
	}
	return copier.Copy(string(content))
}

var _ Copier = (*Service)(nil)

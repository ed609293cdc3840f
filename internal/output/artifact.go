package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/temirov/flatten/internal/utils"
)

const (
	artifactPermission = 0o644

	errorCreateTemporaryFormat = "creating temporary file for %s: %w"
	errorRenderArtifactFormat  = "rendering %s: %w"
	errorCommitArtifactFormat  = "writing %s: %w"
)

// TemporaryPattern returns the glob matching temporary files WriteArtifact
// creates next to outputPath.
func TemporaryPattern(outputPath string) string {
	return filepath.Base(outputPath) + utils.TemporaryFileInfix + "*"
}

// WriteArtifact renders into a temporary file beside outputPath and renames it
// over outputPath once render succeeds. On failure the temporary file is
// removed and any previous artifact is left untouched.
func WriteArtifact(outputPath string, render func(io.Writer) error) (err error) {
	temporaryFile, createError := os.CreateTemp(filepath.Dir(outputPath), filepath.Base(outputPath)+utils.TemporaryFileInfix)
	if createError != nil {
		return fmt.Errorf(errorCreateTemporaryFormat, outputPath, createError)
	}
	temporaryPath := temporaryFile.Name()
	defer func() {
		if err != nil {
			_ = temporaryFile.Close()
			_ = os.Remove(temporaryPath)
		}
	}()

	bufferedWriter := bufio.NewWriter(temporaryFile)
	if renderError := render(bufferedWriter); renderError != nil {
		return fmt.Errorf(errorRenderArtifactFormat, outputPath, renderError)
	}
	if flushError := bufferedWriter.Flush(); flushError != nil {
		return fmt.Errorf(errorCommitArtifactFormat, outputPath, flushError)
	}
	if chmodError := temporaryFile.Chmod(artifactPermission); chmodError != nil {
		return fmt.Errorf(errorCommitArtifactFormat, outputPath, chmodError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf(errorCommitArtifactFormat, outputPath, closeError)
	}
	if renameError := os.Rename(temporaryPath, outputPath); renameError != nil {
		return fmt.Errorf(errorCommitArtifactFormat, outputPath, renameError)
	}
	return nil
}

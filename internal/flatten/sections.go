package flatten

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/temirov/flatten/internal/tokenizer"
	"github.com/temirov/flatten/internal/types"
	"github.com/temirov/flatten/internal/utils"
)

const (
	warningFileReadMessage   = "skipping unreadable file"
	warningTokenCountMessage = "failed to count tokens"
)

// StreamSections reads every planned file in order and sends one section per
// file to out. Files that vanished or cannot be read since the walk are logged
// and skipped. StreamSections returns the context error when ctx is cancelled.
func StreamSections(ctx context.Context, plan Plan, options Options, out chan<- types.FileOutput) error {
	if out == nil {
		return errors.New("flatten: section channel is nil")
	}
	logger := options.logger()

	for _, plannedFile := range plan.Files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// #nosec G304
		fileBytes, readError := os.ReadFile(plannedFile.AbsolutePath)
		if readError != nil {
			logger.Warn(warningFileReadMessage, zap.String("path", plannedFile.RelativePath), zap.Error(readError))
			continue
		}

		section := types.FileOutput{
			Path:      plannedFile.RelativePath,
			Content:   string(fileBytes),
			Size:      utils.FormatFileSize(int64(len(fileBytes))),
			SizeBytes: int64(len(fileBytes)),
		}
		if options.TokenCounter != nil {
			countResult, countError := tokenizer.CountBytes(options.TokenCounter, fileBytes)
			if countError != nil {
				logger.Warn(warningTokenCountMessage, zap.String("path", plannedFile.RelativePath), zap.Error(countError))
			} else if countResult.Counted {
				section.Tokens = countResult.Tokens
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- section:
		}
	}
	return nil
}

// Package tokenizer estimates token counts for flattened file content.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token counts for text content.
type Counter interface {
	Name() string
	CountString(input string) (int, error)
}

// Config captures tokenizer selection parameters provided by the CLI.
type Config struct {
	Model string
}

const (
	// DefaultModel is the model used when none is configured.
	DefaultModel        = "gpt-4o"
	defaultEncodingName = "cl100k_base"
)

var openAIModelPrefixes = []string{
	"gpt-",
	"o1",
	"o3",
	"text-embedding",
	"davinci",
	"curie",
	"babbage",
	"ada",
	"code-",
}

// NewCounter returns a tiktoken Counter for the requested model together with
// the model name that token counts should be attributed to. Models without a
// known encoding fall back to cl100k_base.
func NewCounter(cfg Config) (Counter, string, error) {
	model := ResolveModel(cfg.Model)
	lowerModel := strings.ToLower(model)

	if isOpenAIModel(lowerModel) {
		encoding, err := tiktoken.EncodingForModel(lowerModel)
		if err == nil && encoding != nil {
			return openAICounter{encoding: encoding, name: lowerModel}, model, nil
		}
	}

	fallback, fallbackErr := tiktoken.GetEncoding(defaultEncodingName)
	if fallbackErr != nil {
		return nil, "", fmt.Errorf("initialize fallback tokenizer: %w", fallbackErr)
	}
	return openAICounter{encoding: fallback, name: defaultEncodingName}, defaultEncodingName, nil
}

// ResolveModel trims the configured model and substitutes DefaultModel when empty.
func ResolveModel(model string) string {
	trimmed := strings.TrimSpace(model)
	if trimmed == "" {
		return DefaultModel
	}
	return trimmed
}

func isOpenAIModel(model string) bool {
	for _, prefix := range openAIModelPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

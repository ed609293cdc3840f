package tokenizer

import (
	"errors"

	"github.com/pkoukk/tiktoken-go"
)

// openAICounter counts tokens with a tiktoken BPE encoding.
type openAICounter struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func (counter openAICounter) Name() string {
	return counter.name
}

// CountString encodes input without special-token checks, so literal
// markers such as <|endoftext|> inside source files are counted as text.
func (counter openAICounter) CountString(input string) (int, error) {
	if counter.encoding == nil {
		return 0, errors.New("nil tiktoken encoder")
	}
	if input == "" {
		return 0, nil
	}
	return len(counter.encoding.Encode(input, nil, nil)), nil
}

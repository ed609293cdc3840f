package tokenizer

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

// CountResult captures the outcome of counting a byte slice.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountBytes estimates tokens for the provided data using counter.
// Data that is not valid UTF-8 or contains NUL bytes is reported as not counted.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	if len(data) > 0 && (!utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0) {
		return CountResult{Counted: false}, nil
	}
	tokens, err := counter.CountString(string(data))
	if err != nil {
		return CountResult{}, err
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}

package encode

import (
	"encoding/json"
	"io"
)

// ContentTypeJSON is the content type of everything written by this package
const ContentTypeJSON = "application/json"

// ErrorBody is the body of every error answered by the server
type ErrorBody struct {
	Error   string   `json:"error"`
	Offered []string `json:"offered,omitempty"`
}

// JSONIndented encodes a value into a writer with a single space indentation
func JSONIndented(v interface{}, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", " ")

	return encoder.Encode(v)
}

// Error encodes an ErrorBody into a writer
func Error(w io.Writer, message string, offered ...string) error {
	return JSONIndented(ErrorBody{Error: message, Offered: offered}, w)
}

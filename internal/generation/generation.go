// Package generation is the boundary to the upstream text and media model.
// Providers implement Backend; the rest of the service talks to a Gateway.
package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"iter"
)

// ErrNotConfigured is returned when no backend credential is available.
var ErrNotConfigured = errors.New("generation backend not configured")

// Declaration describes one structured call the model may issue.
// Parameters is a JSON schema object.
type Declaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Call is a structured call decoded from model output.
type Call struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	// ArgsErr is set when the provider sent arguments that were not a JSON object.
	ArgsErr error `json:"-"`
}

type Request struct {
	System       string
	Prompt       string
	Declarations []Declaration
}

type Result struct {
	Text  string
	Calls []Call
}

// Fragment is one element of a streamed completion. Either field may be empty.
type Fragment struct {
	Text  string
	Calls []Call
}

func (f Fragment) Empty() bool {
	return f.Text == "" && len(f.Calls) == 0
}

type Media struct {
	MIMEType string
	Data     []byte
}

// DataURI renders the media inline as data:<mime>;base64,<payload>.
func (m Media) DataURI() string {
	return "data:" + m.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(m.Data)
}

// Backend is one model provider. Stream yields fragments in arrival order
// and ends after the first error. GenerateImage returns nil media with a nil
// error when the model answered without an image.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (Result, error)
	Stream(ctx context.Context, req Request) iter.Seq2[Fragment, error]
	GenerateImage(ctx context.Context, prompt string) (*Media, error)
}

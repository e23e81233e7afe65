package client

import (
	"context"
)

// TextClient completes a prompt against a language model. imgB64 is an
// optional base64 image attached to the prompt; empty means text only.
type TextClient interface {
	Complete(ctx context.Context, model, prompt, imgB64 string) (string, error)
}

package out

import "context"

// TextGenerator produces post copy from an instruction. The model behind it is opaque.
type TextGenerator interface {
	Generate(ctx context.Context, req *TextRequest) (string, error)
}

// TextRequest is a single-turn generation request.
type TextRequest struct {
	System    string
	Prompt    string
	MaxTokens int
}

package ports

import "github.com/layer-3/recaptcha/core"

// Tokenizer converts between passes and signed tokens
type Tokenizer interface {
	PassToToken(pass *core.Pass) (string, error)
	TokenToPass(token string) (*core.Pass, error)
}

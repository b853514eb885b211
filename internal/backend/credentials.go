package backend

import "context"

// CredentialProvider supplies the bearer token for authenticated calls. It is
// consulted once per request and never written by the client.
type CredentialProvider interface {
	Token(ctx context.Context) (string, bool)
}

// StaticToken is a fixed bearer token. The empty token means no credential.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, bool) {
	return string(t), t != ""
}

// CredentialFunc adapts a function to CredentialProvider.
type CredentialFunc func(ctx context.Context) (string, bool)

func (f CredentialFunc) Token(ctx context.Context) (string, bool) {
	return f(ctx)
}

package authclient

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// AuthRequester is the surface provider clients use to make authenticated
// calls. *Manager satisfies it.
type AuthRequester interface {
	Do(ctx context.Context, req *Request, opts ...RequestOption) (*Response, error)
}

var _ AuthRequester = (*Manager)(nil)

// ProviderClientKind discriminates the two factory shapes: factories that
// only need a requester, and factories that additionally take a provider
// name.
type ProviderClientKind string

const (
	ProviderClientUnnamed ProviderClientKind = "unnamed"
	ProviderClientNamed   ProviderClientKind = "named"
)

// ProviderClientFactory builds provider-specific clients on top of the
// authenticated request pipeline. The two factory shapes live behind one
// tagged value so call sites resolve the difference in a single place.
type ProviderClientFactory[T any] struct {
	kind     ProviderClientKind
	build    func(requester AuthRequester) T
	buildFor func(requester AuthRequester, providerName string) T
}

// NewProviderClientFactory wraps a factory that is bound to a fixed provider.
func NewProviderClientFactory[T any](build func(requester AuthRequester) T) ProviderClientFactory[T] {
	return ProviderClientFactory[T]{kind: ProviderClientUnnamed, build: build}
}

// NewNamedProviderClientFactory wraps a factory parameterized by provider
// name.
func NewNamedProviderClientFactory[T any](build func(requester AuthRequester, providerName string) T) ProviderClientFactory[T] {
	return ProviderClientFactory[T]{kind: ProviderClientNamed, buildFor: build}
}

// Kind returns the factory's capability tag.
func (f ProviderClientFactory[T]) Kind() ProviderClientKind {
	return f.kind
}

// Client resolves the factory against a requester. Unnamed factories reject a
// provider name, named factories require one.
func (f ProviderClientFactory[T]) Client(requester AuthRequester, providerName ...string) (T, error) {
	var zero T
	switch f.kind {
	case ProviderClientUnnamed:
		if len(providerName) > 0 {
			return zero, ErrUnexpectedArguments
		}
		return f.build(requester), nil
	case ProviderClientNamed:
		if len(providerName) != 1 || providerName[0] == "" {
			return zero, goerrors.New("a provider name is required", goerrors.CategoryBadInput).
				WithTextCode(TextCodeUnexpectedArguments).
				WithCode(goerrors.CodeBadRequest)
		}
		return f.buildFor(requester, providerName[0]), nil
	default:
		return zero, goerrors.New("factory is not initialized", goerrors.CategoryInternal)
	}
}

// ClientForFactory resolves a provider client against a manager.
func ClientForFactory[T any](m *Manager, factory ProviderClientFactory[T], providerName ...string) (T, error) {
	return factory.Client(m, providerName...)
}

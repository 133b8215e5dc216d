package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	dompay "github.com/shoplite/checkout-engine/internal/domain/payment"
)

type stubProcessor struct {
	method string
}

func (s stubProcessor) Method() string { return s.method }

func (s stubProcessor) Process(context.Context, dompay.Attempt) (dompay.Result, error) {
	return dompay.Result{Status: dompay.StatusSucceeded}, nil
}

func (s stubProcessor) Verify(context.Context, string) (bool, error) {
	return true, nil
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(stubProcessor{method: "card"}, stubProcessor{method: "wallet"})

	p, err := registry.Lookup("card")
	require.NoError(t, err)
	require.Equal(t, "card", p.Method())

	_, err = registry.Lookup("crypto")
	require.ErrorIs(t, err, dompay.ErrUnsupportedMethod)
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	registry := NewRegistry(stubProcessor{method: "card"})
	registry.Register(stubProcessor{method: "card"})

	require.Len(t, registry.Methods(), 1)
}

func TestRegistryMethods(t *testing.T) {
	registry := NewRegistry(stubProcessor{method: "card"}, stubProcessor{method: "wallet"})
	require.ElementsMatch(t, []string{"card", "wallet"}, registry.Methods())
}

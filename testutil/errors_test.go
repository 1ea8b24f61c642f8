/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequireErrorIsAny(t *testing.T) {
	errRejected := errors.New("admission rejected")
	errSaturated := errors.New("dispatcher is saturated")
	targets := []error{errRejected, errSaturated}

	mockT := &MockT{}
	RequireErrorIsAny(mockT, fmt.Errorf("submit: %w", errSaturated), targets)
	require.False(t, mockT.Failed)

	mockT = &MockT{}
	RequireErrorIsAny(mockT, fmt.Errorf("wait: %w", context.DeadlineExceeded), targets)
	require.True(t, mockT.Failed)
	require.Contains(t, fmt.Sprint(mockT.Args...), `["wait: context deadline exceeded" -> "context deadline exceeded"]`)

	mockT = &MockT{}
	RequireErrorIsAny(mockT, nil, targets)
	require.True(t, mockT.Failed)
}

func TestRequireNoErrorInChannel(t *testing.T) {
	ch := make(chan error, 3)

	mockT := &MockT{}
	RequireNoErrorInChannel(mockT, ch)
	require.False(t, mockT.Failed)

	ch <- nil
	ch <- nil
	mockT = &MockT{}
	RequireNoErrorInChannel(mockT, ch)
	require.False(t, mockT.Failed)
	require.Empty(t, ch)

	ch <- nil
	ch <- errors.New("unexpected content type")
	mockT = &MockT{}
	RequireNoErrorInChannel(mockT, ch)
	require.True(t, mockT.Failed)
}

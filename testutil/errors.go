/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertNoErrorInChannel drains the buffered errors of the channel and asserts that none of them is non-nil.
// It never blocks, so errors sent from handler goroutines should be checked after they are done.
func AssertNoErrorInChannel(t assert.TestingT, c <-chan error, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	for {
		select {
		case err := <-c:
			if !assert.NoError(t, err, msgAndArgs...) {
				return false
			}
		default:
			return true
		}
	}
}

// RequireNoErrorInChannel calls AssertNoErrorInChannel and fails the test immediately in case of error.
func RequireNoErrorInChannel(t require.TestingT, c <-chan error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertNoErrorInChannel(t, c, msgAndArgs...) {
		t.FailNow()
	}
}

// AssertErrorIsAny asserts that errors.Is(err, target) holds for at least one of targets.
// On failure, the whole chain of err is printed.
func AssertErrorIsAny(t assert.TestingT, err error, targets []error, msgAndArgs ...interface{}) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	want := make([]string, 0, len(targets))
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
		want = append(want, fmt.Sprintf("%q", target.Error()))
	}
	return assert.Fail(t, fmt.Sprintf("None of the target errors is in err chain:\n"+
		"targets: [%s]\n"+
		"chain:   %s", strings.Join(want, "; "), errorChain(err)), msgAndArgs...)
}

// RequireErrorIsAny calls AssertErrorIsAny and fails the test immediately in case of error.
func RequireErrorIsAny(t require.TestingT, err error, targets []error, msgAndArgs ...interface{}) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if !AssertErrorIsAny(t, err, targets, msgAndArgs...) {
		t.FailNow()
	}
}

func errorChain(err error) string {
	var parts []string
	for ; err != nil; err = errors.Unwrap(err) {
		parts = append(parts, fmt.Sprintf("%q", err.Error()))
	}
	return "[" + strings.Join(parts, " -> ") + "]"
}

package testutil

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

// AssertEqualIgnoring compares expected and actual with go-cmp, ignoring the named fields of T
// (typically generated ids and timestamps), and reports the diff on failure.
func AssertEqualIgnoring[T any](t *testing.T, expected, actual any, ignoredFields []string, msgAndArgs ...any) bool {
	t.Helper()
	var zero T
	diff := cmp.Diff(expected, actual, cmpopts.IgnoreFields(zero, ignoredFields...), cmpopts.EquateEmpty())
	if diff != "" {
		assert.Fail(t, fmt.Sprintf("Not equal (-expected +actual):\n%s", diff), msgAndArgs...)
		return false
	}
	return true
}

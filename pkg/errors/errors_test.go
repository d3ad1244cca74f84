package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not initialized", ErrNotInitialized, http.StatusServiceUnavailable},
		{"wrapped not initialized", fmt.Errorf("searching: %w", ErrNotInitialized), http.StatusServiceUnavailable},
		{"bad year", ErrInvalidYearFormat, http.StatusBadRequest},
		{"bad input", ErrInvalidInput, http.StatusBadRequest},
		{"build running", ErrBuildInProgress, http.StatusConflict},
		{"missing snapshot", ErrSnapshotNotFound, http.StatusNotFound},
		{"app error wins", New(ErrInternal, http.StatusTeapot, "brew"), http.StatusTeapot},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusCode(tc.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidYearFormat, http.StatusBadRequest, "year %q", "20x1")
	assert.True(t, Is(err, ErrInvalidYearFormat))
	assert.Equal(t, `invalid year format: year "20x1"`, err.Error())
}

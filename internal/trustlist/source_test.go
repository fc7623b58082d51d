package trustlist

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_ParsesIdentifierLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Alice\n\n  bob  \ncharlie\n"))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)
	ids, err := source.Fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "bob", "charlie"}, ids)
}

func TestHTTPSource_EmptyPayloadIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\n  \n"))
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)
	_, err := source.Fetch(context.Background())

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, server.URL, fetchErr.URL)
}

func TestHTTPSource_NonOKStatusIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL)
	_, err := source.Fetch(context.Background())

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

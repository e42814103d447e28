package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" authorization = Bearer abc ,x-tenant=dao,, broken ,=skip")
	require.Equal(t, map[string]string{
		"authorization": "Bearer abc",
		"x-tenant":      "dao",
	}, headers)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExporters(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "daod"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer("test").Start(context.Background(), "noop")
	span.End()
}

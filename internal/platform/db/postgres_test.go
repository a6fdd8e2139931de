package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRejectsMalformedDSN(t *testing.T) {
	_, err := New(context.Background(), "postgres://%zz")
	require.Error(t, err)
	require.Contains(t, err.Error(), "platform/db: parse config")
}

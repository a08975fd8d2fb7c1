package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministic_Complete(t *testing.T) {
	client := NewDeterministic(`{"schema_version":"1.1"}`)
	out, err := client.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"schema_version":"1.1"}`, out)
}

func TestDeterministic_Complete_CancelledContext(t *testing.T) {
	client := NewDeterministic("ignored")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Complete(ctx, "system", "user")
	assert.Error(t, err)
}

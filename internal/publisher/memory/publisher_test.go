package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	p := New()

	id, err := p.Publish(context.Background(), "audits", map[string]string{"job_id": "example.com-1"})
	require.NoError(t, err)
	assert.Equal(t, "mem-1", id)

	id, err = p.Publish(context.Background(), "audits", map[string]string{"job_id": "example.com-2"})
	require.NoError(t, err)
	assert.Equal(t, "mem-2", id)

	messages := p.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "audits", messages[0].Topic)
}

func TestMessagesReturnsCopy(t *testing.T) {
	p := New()
	_, err := p.Publish(context.Background(), "audits", "payload")
	require.NoError(t, err)

	first := p.Messages()
	first[0].Topic = "mutated"

	assert.Equal(t, "audits", p.Messages()[0].Topic)
}

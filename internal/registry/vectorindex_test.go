package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQdrantPointID_PassesThroughValidUUID(t *testing.T) {
	id := uuid.New().String()
	assert.Equal(t, id, qdrantPointID(id))
}

func TestQdrantPointID_DeterministicForNonUUIDBlockID(t *testing.T) {
	a := qdrantPointID("summarize_text")
	b := qdrantPointID("summarize_text")
	assert.Equal(t, a, b)
	assert.NotEqual(t, "summarize_text", a)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestQdrantPointID_DifferentBlockIDsDifferentUUIDs(t *testing.T) {
	assert.NotEqual(t, qdrantPointID("block_a"), qdrantPointID("block_b"))
}

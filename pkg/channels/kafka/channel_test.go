package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokers(t *testing.T) {
	brokers, err := Brokers("a:9092, b:9092,,")
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, brokers)

	t.Setenv("KAFKA_BROKERS", "env:9092")

	brokers, err = Brokers("")
	require.NoError(t, err)
	assert.Equal(t, []string{"env:9092"}, brokers)

	t.Setenv("KAFKA_BROKERS", "")

	_, err = Brokers("")
	assert.Error(t, err)
}

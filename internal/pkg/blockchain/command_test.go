package blockchain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/onflow/cadence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBlockchainCommand_EncodesArguments(t *testing.T) {
	cmd, err := NewBlockchainCommand("VRF_REQUEST", []cadence.Value{
		cadence.NewUInt64(42),
		cadence.String("seed"),
	}, []Authorizer{{ResourceOwnerAddress: "0x01"}})
	require.NoError(t, err)

	_, err = uuid.Parse(cmd.Id)
	assert.NoError(t, err)
	assert.Equal(t, CommandTopic, cmd.GetEventTopicName())
	require.Len(t, cmd.Payload, 2)
	assert.JSONEq(t, `{"type":"UInt64","value":"42"}`, string(cmd.Payload[0]))

	decoded, err := DecodeArgument(cmd.Payload[0])
	require.NoError(t, err)
	assert.Equal(t, cadence.NewUInt64(42), decoded)
}

package oracle

import (
	"strings"
	"testing"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/onflow/cadence"
	"github.com/onflow/flow-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	messages []pubsub.Publishable
}

func (p *recordingPublisher) Publish(message pubsub.Publishable) {
	p.messages = append(p.messages, message)
}

func TestChamberFromRandomness_AlwaysInRange(t *testing.T) {
	for b := 0; b < 256; b++ {
		chamber := ChamberFromRandomness(model.Hash32{byte(b)})
		assert.GreaterOrEqual(t, chamber, uint8(1))
		assert.LessOrEqual(t, chamber, uint8(6))
	}
	assert.Equal(t, uint8(4), ChamberFromRandomness(model.Hash32{3}))
}

func TestRequest_PublishesBoundCommand(t *testing.T) {
	publisher := &recordingPublisher{}
	adapter := NewAdapter(publisher, flow.HexToAddress("0f"))

	requestId := NewRequestId()
	err := adapter.Request(&model.Game{Id: 12, VrfSeed: model.Hash32{1, 2, 3}, VrfRequestId: requestId})
	require.NoError(t, err)

	require.Len(t, publisher.messages, 1)
	cmd := publisher.messages[0].(blockchain.Command)
	assert.Equal(t, "VRF_REQUEST", cmd.Type)
	require.Len(t, cmd.Payload, 4)
	assert.JSONEq(t, `{"type":"UInt64","value":"12"}`, string(cmd.Payload[0]))
	assert.JSONEq(t, `{"type":"String","value":"`+requestId+`"}`, string(cmd.Payload[1]))

	seed, err := blockchain.DecodeArgument(cmd.Payload[2])
	require.NoError(t, err)
	assert.Len(t, seed.(cadence.Array).Values, 32)
}

func TestAuthorize(t *testing.T) {
	adapter := NewAdapter(&recordingPublisher{}, flow.HexToAddress("0f"))

	assert.NoError(t, adapter.Authorize(flow.HexToAddress("0f")))
	assert.ErrorIs(t, adapter.Authorize(flow.HexToAddress("01")), reject.ErrUnauthorized)
}

func TestParseRandomness(t *testing.T) {
	h, err := ParseRandomness("0x" + strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), h[31])

	_, err = ParseRandomness(strings.Repeat("ab", 31))
	assert.ErrorIs(t, err, reject.ErrInvalidRandomness)
}

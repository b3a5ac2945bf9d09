// Package oracle binds randomness requests to games and validates fulfillments.
package oracle

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/onflow/cadence"
	"github.com/onflow/flow-go-sdk"
	"github.com/rs/zerolog/log"
)

const requestCommandType = "VRF_REQUEST"

// Fulfillment is the oracle callback for a game.
type Fulfillment struct {
	GameId     uint64       `json:"gameId"`
	RequestId  string       `json:"requestId"`
	Randomness model.Hash32 `json:"randomness"`
	Caller     flow.Address `json:"caller"`
}

type Adapter struct {
	publisher pubsub.Publisher
	authority flow.Address
}

func NewAdapter(publisher pubsub.Publisher, authority flow.Address) *Adapter {
	return &Adapter{publisher: publisher, authority: authority}
}

// NewRequestId returns a fresh id to bind a randomness request to a game.
func NewRequestId() string {
	return uuid.New().String()
}

// Request emits a randomness request carrying the game id, its seed and the
// request id the game was bound to. The fulfillment must echo that id.
func (a *Adapter) Request(game *model.Game) error {
	seed := make([]cadence.Value, 0, len(game.VrfSeed))
	for _, b := range game.VrfSeed {
		seed = append(seed, cadence.NewUInt8(b))
	}
	cmd, err := blockchain.NewBlockchainCommand(requestCommandType, []cadence.Value{
		cadence.NewUInt64(game.Id),
		cadence.String(game.VrfRequestId),
		cadence.NewArray(seed),
		cadence.NewAddress(a.authority),
	}, []blockchain.Authorizer{blockchain.GetAdminAuthorizer()})
	if err != nil {
		return err
	}
	a.publisher.Publish(cmd)
	log.Info().Uint64("game_id", game.Id).Str("request_id", game.VrfRequestId).Msg("Randomness requested")
	return nil
}

// Authorize rejects fulfillments that do not come from the oracle identity.
func (a *Adapter) Authorize(caller flow.Address) error {
	if caller != a.authority {
		return reject.ErrUnauthorized
	}
	return nil
}

func (a *Adapter) Authority() flow.Address {
	return a.authority
}

// ChamberFromRandomness maps randomness onto the loaded chamber in [1,6].
func ChamberFromRandomness(randomness model.Hash32) uint8 {
	return randomness[0]%model.ChamberCount + 1
}

// ParseRandomness decodes hex randomness, which must be exactly 32 bytes.
func ParseRandomness(value string) (model.Hash32, error) {
	h, err := model.ParseHash32(value)
	if err != nil {
		return h, fmt.Errorf("%v: %w", err, reject.ErrInvalidRandomness)
	}
	return h, nil
}

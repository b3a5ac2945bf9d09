package game

import (
	"context"
	"fmt"
	"net/http"

	gcppubsub "cloud.google.com/go/pubsub"
	"github.com/kollektive-hackathon/roulette-backend/internal/oracle"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/blockchain"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/utils"
	"github.com/onflow/cadence"
	"github.com/onflow/flow-go-sdk"
	"github.com/rs/zerolog/log"
)

// VrfFulfilled is delivered by the oracle relay once randomness for a game is available.
type VrfFulfilled struct {
	GameId     uint64 `json:"gameId"`
	RequestId  string `json:"requestId"`
	Randomness string `json:"randomness"`
	Caller     string `json:"caller"`
}

type gameContractBridge struct {
	publisher   pubsub.Publisher
	gameService *gameService
}

func (b *gameContractBridge) sendSettlement(game *model.Game) {
	if b.publisher == nil || game.Settlement == nil {
		return
	}
	players := make([]cadence.Value, 0, len(game.Settlement.Payouts))
	amounts := make([]cadence.Value, 0, len(game.Settlement.Payouts))
	for _, payout := range game.Settlement.Payouts {
		players = append(players, cadence.NewAddress(payout.Player))
		amounts = append(amounts, cadence.NewUInt64(payout.Paid))
	}
	b.send("GAME_SETTLE", []cadence.Value{
		cadence.NewUInt64(game.Id),
		cadence.NewUInt8(uint8(*game.WinnerTeam)),
		cadence.NewArray(players),
		cadence.NewArray(amounts),
		cadence.NewUInt64(game.Settlement.PlatformFee),
		cadence.NewUInt64(game.Settlement.TreasuryFee + game.Settlement.Dust),
	})
}

func (b *gameContractBridge) sendRefund(game *model.Game, refunds []model.Payout) {
	if b.publisher == nil {
		return
	}
	players := make([]cadence.Value, 0, len(refunds))
	for _, refund := range refunds {
		players = append(players, cadence.NewAddress(refund.Player))
	}
	b.send("GAME_REFUND", []cadence.Value{
		cadence.NewUInt64(game.Id),
		cadence.NewArray(players),
		cadence.NewUInt64(game.EntryFee),
	})
}

func (b *gameContractBridge) send(commandType string, args []cadence.Value) {
	cmd, err := blockchain.NewBlockchainCommand(commandType, args, []blockchain.Authorizer{blockchain.GetAdminAuthorizer()})
	if err != nil {
		log.Warn().Err(err).Str("command", commandType).Msg("Cannot build blockchain command")
		return
	}
	b.publisher.Publish(cmd)
}

func (b *gameContractBridge) handleVrfFulfilled(ctx context.Context, message *gcppubsub.Message) {
	log.Info().Msg("Received message payload " + string(message.Data))
	if err := b.processVrfFulfilled(ctx, message.Data); err != nil {
		log.Warn().Err(err).Msg("Error while handling VrfFulfilled")
		message.Nack()
		return
	}
	message.Ack()
}

// processVrfFulfilled returns an error only when redelivery could succeed.
// Malformed or rejected fulfillments are logged and dropped.
func (b *gameContractBridge) processVrfFulfilled(ctx context.Context, data []byte) error {
	messagePayload, err := utils.DecodeMessage[VrfFulfilled](data)
	if err != nil {
		log.Warn().Err(err).Msg("Error while parsing VrfFulfilled message")
		return nil
	}
	randomness, err := oracle.ParseRandomness(messagePayload.Randomness)
	if err != nil {
		log.Warn().Err(err).Uint64("game_id", messagePayload.GameId).Msg("Dropping fulfillment with malformed randomness")
		return nil
	}

	_, problem := b.gameService.submitRandomness(ctx, oracle.Fulfillment{
		GameId:     messagePayload.GameId,
		RequestId:  messagePayload.RequestId,
		Randomness: randomness,
		Caller:     flow.HexToAddress(messagePayload.Caller),
	})
	if problem == nil {
		return nil
	}
	if problem.Problem.Status >= http.StatusInternalServerError {
		return fmt.Errorf("apply randomness to game %d: %w", messagePayload.GameId, problem)
	}
	log.Warn().Err(problem).Uint64("game_id", messagePayload.GameId).Msg("Fulfillment rejected")
	return nil
}

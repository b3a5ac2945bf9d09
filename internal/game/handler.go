package game

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/roulette-backend/internal/handoff"
	"github.com/kollektive-hackathon/roulette-backend/internal/notify"
	"github.com/kollektive-hackathon/roulette-backend/internal/oracle"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/config"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/store"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/utils"
	"github.com/onflow/flow-go-sdk"
)

type Dependencies struct {
	Store                    store.Store
	Handoff                  *handoff.Handoff
	Oracle                   *oracle.Adapter
	Publisher                pubsub.Publisher
	Subscriber               pubsub.Subscriber
	Notifier                 notify.Notifier
	Config                   config.GameConfig
	VrfFulfilledSubscription string
	VerifyAuthToken          gin.HandlerFunc
}

type gameHandler struct {
	gameService *gameService
}

func RegisterRoutesAndSubscriptions(rg *gin.RouterGroup, deps Dependencies) {
	bridge := &gameContractBridge{publisher: deps.Publisher}
	service := newGameService(deps.Store, deps.Handoff, deps.Oracle, bridge, deps.Notifier, deps.Config)
	bridge.gameService = service
	handler := gameHandler{gameService: service}

	routes := rg.Group("/game")
	routes.GET("", handler.getGames)
	routes.GET("/:id", handler.getGame)
	routes.GET("/:id/record", handler.getRecord)

	routes.POST("", deps.VerifyAuthToken, handler.createGame)
	routes.POST("/:id/join", deps.VerifyAuthToken, handler.joinGame)
	routes.POST("/:id/join-with-loan", deps.VerifyAuthToken, handler.joinGameWithLoan)
	routes.POST("/:id/delegate", deps.VerifyAuthToken, handler.delegateGame)
	routes.POST("/:id/randomness", deps.VerifyAuthToken, handler.requestRandomness)
	routes.POST("/:id/randomness/fulfill", deps.VerifyAuthToken, handler.submitRandomness)
	routes.POST("/:id/shots", deps.VerifyAuthToken, handler.takeShot)
	routes.POST("/:id/bot-shots", deps.VerifyAuthToken, handler.takeBotShot)
	routes.POST("/:id/commit", deps.VerifyAuthToken, handler.commitGame)
	routes.POST("/:id/undelegate", deps.VerifyAuthToken, handler.undelegateGame)
	routes.POST("/:id/finalize", deps.VerifyAuthToken, handler.finalizeGame)
	routes.POST("/:id/cancel", deps.VerifyAuthToken, handler.cancelGame)

	rg.POST("/practice-game", deps.VerifyAuthToken, handler.createPracticeGame)

	if deps.Subscriber != nil && deps.VrfFulfilledSubscription != "" {
		go deps.Subscriber.Subscribe(pubsub.SubscriptionHandler{
			SubscriptionId: deps.VrfFulfilledSubscription,
			Handler:        bridge.handleVrfFulfilled,
		})
	}
}

func gameIdParam(c *gin.Context) (uint64, bool) {
	gameId, err := strconv.ParseUint(c.Param("id"), 0, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return 0, false
	}
	return gameId, true
}

func respond[T any](c *gin.Context, status int, value T, err *reject.ProblemWithTrace) {
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}
	c.JSON(status, value)
}

type CreateGameRequest struct {
	Mode       string `json:"mode" binding:"required"`
	EntryFee   uint64 `json:"entryFee"`
	VrfSeed    string `json:"vrfSeed" binding:"required"`
	Funding    string `json:"funding"`
	Collateral uint64 `json:"collateral"`
}

func (gh *gameHandler) createGame(c *gin.Context) {
	body := CreateGameRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	mode, err := model.ParseGameMode(body.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.ProblemFor(err))
		return
	}
	seed, err := model.ParseHash32(body.VrfSeed)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestValidationProblem())
		return
	}
	funding, err := ParseFundingMode(body.Funding)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.ProblemFor(err))
		return
	}

	game, problem := gh.gameService.createGame(c.Request.Context(), utils.GetUserAddress(c), CreateGameParams{
		Mode:     mode,
		EntryFee: body.EntryFee,
		VrfSeed:  seed,
		Funding:  Funding{Mode: funding, Collateral: body.Collateral},
	})
	respond(c, http.StatusCreated, game, problem)
}

type CreatePracticeGameRequest struct {
	Difficulty string `json:"difficulty"`
	VrfSeed    string `json:"vrfSeed" binding:"required"`
}

func (gh *gameHandler) createPracticeGame(c *gin.Context) {
	body := CreatePracticeGameRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	difficulty, err := model.ParseBotDifficulty(body.Difficulty)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.ProblemFor(err))
		return
	}
	seed, err := model.ParseHash32(body.VrfSeed)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.RequestValidationProblem())
		return
	}

	game, problem := gh.gameService.createPracticeGame(c.Request.Context(), utils.GetUserAddress(c), CreatePracticeGameParams{
		Difficulty: difficulty,
		VrfSeed:    seed,
	})
	respond(c, http.StatusCreated, game, problem)
}

func (gh *gameHandler) getGames(c *gin.Context) {
	page, err := utils.NewPageRequest(c)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	filter := store.GameFilter{}
	if value := c.Query("status"); value != "" {
		status, parseErr := model.ParseGameStatus(value)
		if parseErr != nil {
			c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
			return
		}
		filter.Status = &status
	}
	if value := c.Query("player"); value != "" {
		player := flow.HexToAddress(value)
		filter.Player = &player
	}

	games, gamesCount, err := gh.gameService.getGames(c.Request.Context(), filter, store.Page{Limit: page.Size, Offset: page.Offset})
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, utils.NewPageResponse(page, games, gamesCount))
}

func (gh *gameHandler) getGame(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	game, err := gh.gameService.getGame(c.Request.Context(), gameId)
	respond(c, http.StatusOK, game, err)
}

// getRecord serves the fixed-width binary record of the game.
func (gh *gameHandler) getRecord(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	game, problem := gh.gameService.getGame(c.Request.Context(), gameId)
	if problem != nil {
		c.JSON(problem.Problem.Status, problem.Problem)
		return
	}
	record, err := game.MarshalBinary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, reject.UnexpectedProblem(err))
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", record)
}

type JoinGameRequest struct {
	Funding    string `json:"funding"`
	Collateral uint64 `json:"collateral"`
}

func (gh *gameHandler) joinGame(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	body := JoinGameRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
			return
		}
	}
	funding, err := ParseFundingMode(body.Funding)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.ProblemFor(err))
		return
	}
	game, problem := gh.gameService.joinGame(c.Request.Context(), utils.GetUserAddress(c), gameId, Funding{Mode: funding, Collateral: body.Collateral})
	respond(c, http.StatusOK, game, problem)
}

type JoinWithLoanRequest struct {
	Collateral uint64 `json:"collateral" binding:"required"`
}

func (gh *gameHandler) joinGameWithLoan(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	body := JoinWithLoanRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	game, problem := gh.gameService.joinGame(c.Request.Context(), utils.GetUserAddress(c), gameId, Funding{Mode: FundingLoan, Collateral: body.Collateral})
	respond(c, http.StatusOK, game, problem)
}

func (gh *gameHandler) delegateGame(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	game, err := gh.gameService.delegateGame(c.Request.Context(), utils.GetUserAddress(c), gameId)
	respond(c, http.StatusOK, game, err)
}

func (gh *gameHandler) requestRandomness(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	game, err := gh.gameService.requestRandomness(c.Request.Context(), utils.GetUserAddress(c), gameId)
	respond(c, http.StatusAccepted, game, err)
}

type SubmitRandomnessRequest struct {
	RequestId  string `json:"requestId"`
	Randomness string `json:"randomness" binding:"required"`
}

func (gh *gameHandler) submitRandomness(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	body := SubmitRandomnessRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	randomness, err := oracle.ParseRandomness(body.Randomness)
	if err != nil {
		c.JSON(http.StatusBadRequest, reject.ProblemFor(err))
		return
	}
	game, problem := gh.gameService.submitRandomness(c.Request.Context(), oracle.Fulfillment{
		GameId:     gameId,
		RequestId:  body.RequestId,
		Randomness: randomness,
		Caller:     utils.GetUserAddress(c),
	})
	respond(c, http.StatusOK, game, problem)
}

func (gh *gameHandler) takeShot(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	result, err := gh.gameService.takeShot(c.Request.Context(), utils.GetUserAddress(c), gameId)
	respond(c, http.StatusOK, result, err)
}

func (gh *gameHandler) takeBotShot(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	result, err := gh.gameService.takeBotShot(c.Request.Context(), utils.GetUserAddress(c), gameId)
	respond(c, http.StatusOK, result, err)
}

func (gh *gameHandler) commitGame(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	game, err := gh.gameService.commitGame(c.Request.Context(), utils.GetUserAddress(c), gameId)
	respond(c, http.StatusOK, game, err)
}

func (gh *gameHandler) undelegateGame(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	game, err := gh.gameService.undelegateGame(c.Request.Context(), utils.GetUserAddress(c), gameId)
	respond(c, http.StatusOK, game, err)
}

func (gh *gameHandler) finalizeGame(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	game, err := gh.gameService.finalizeGame(c.Request.Context(), gameId)
	respond(c, http.StatusOK, game, err)
}

func (gh *gameHandler) cancelGame(c *gin.Context) {
	gameId, ok := gameIdParam(c)
	if !ok {
		return
	}
	game, err := gh.gameService.cancelGame(c.Request.Context(), utils.GetUserAddress(c), gameId)
	respond(c, http.StatusOK, game, err)
}

package platform

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/utils"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/onflow/flow-go-sdk"
)

type Dependencies struct {
	Service              *Service
	Subscriber           pubsub.Subscriber
	DepositsSubscription string
	VerifyAuthToken      gin.HandlerFunc
}

type platformHandler struct {
	platformService *Service
}

func RegisterRoutesAndSubscriptions(rg *gin.RouterGroup, deps Dependencies) {
	handler := platformHandler{
		platformService: deps.Service,
	}

	routes := rg.Group("/platform")
	routes.GET("", handler.getPlatform)
	routes.POST("", deps.VerifyAuthToken, handler.initialize)
	routes.POST("/pause", deps.VerifyAuthToken, handler.pause)
	routes.POST("/unpause", deps.VerifyAuthToken, handler.unpause)
	routes.PUT("/fees", deps.VerifyAuthToken, handler.updateFees)
	routes.POST("/authority", deps.VerifyAuthToken, handler.transferAuthority)
	routes.POST("/treasury/withdraw", deps.VerifyAuthToken, handler.withdrawTreasury)
	routes.POST("/lending-pool", deps.VerifyAuthToken, handler.fundLendingPool)

	rg.GET("/balance/:address", deps.VerifyAuthToken, handler.getBalance)

	if deps.Subscriber != nil && deps.DepositsSubscription != "" {
		bridge := &platformContractBridge{platformService: deps.Service}
		go deps.Subscriber.Subscribe(pubsub.SubscriptionHandler{
			SubscriptionId: deps.DepositsSubscription,
			Handler:        bridge.handleDeposited,
		})
	}
}

func (h *platformHandler) getPlatform(c *gin.Context) {
	p, err := h.platformService.Get(c.Request.Context())
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}
	c.JSON(http.StatusOK, p)
}

type InitializeRequest struct {
	Treasury       string `json:"treasury" binding:"required"`
	PlatformFeeBps uint16 `json:"platformFeeBps"`
	TreasuryFeeBps uint16 `json:"treasuryFeeBps"`
}

func (h *platformHandler) initialize(c *gin.Context) {
	body := InitializeRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	p, err := h.platformService.Initialize(
		c.Request.Context(),
		utils.GetUserAddress(c),
		flow.HexToAddress(body.Treasury),
		settlement.Fees{PlatformBps: body.PlatformFeeBps, TreasuryBps: body.TreasuryFeeBps},
	)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *platformHandler) pause(c *gin.Context) {
	h.respond(c)(h.platformService.SetPaused(c.Request.Context(), utils.GetUserAddress(c), true))
}

func (h *platformHandler) unpause(c *gin.Context) {
	h.respond(c)(h.platformService.SetPaused(c.Request.Context(), utils.GetUserAddress(c), false))
}

func (h *platformHandler) updateFees(c *gin.Context) {
	body := settlement.Fees{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	h.respond(c)(h.platformService.UpdateFees(c.Request.Context(), utils.GetUserAddress(c), body))
}

type TransferAuthorityRequest struct {
	Authority string `json:"authority" binding:"required"`
}

func (h *platformHandler) transferAuthority(c *gin.Context) {
	body := TransferAuthorityRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	h.respond(c)(h.platformService.TransferAuthority(c.Request.Context(), utils.GetUserAddress(c), flow.HexToAddress(body.Authority)))
}

type AmountRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

func (h *platformHandler) withdrawTreasury(c *gin.Context) {
	body := AmountRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	h.respond(c)(h.platformService.WithdrawTreasury(c.Request.Context(), utils.GetUserAddress(c), body.Amount))
}

func (h *platformHandler) fundLendingPool(c *gin.Context) {
	body := AmountRequest{}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}
	h.respond(c)(h.platformService.FundLendingPool(c.Request.Context(), utils.GetUserAddress(c), body.Amount))
}

type BalanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

func (h *platformHandler) getBalance(c *gin.Context) {
	address := flow.HexToAddress(c.Param("address"))
	balance, err := h.platformService.Balance(c.Request.Context(), model.WalletAccount(address))
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Address: address.Hex(), Balance: balance})
}

func (h *platformHandler) respond(c *gin.Context) func(*model.Platform, *reject.ProblemWithTrace) {
	return func(p *model.Platform, err *reject.ProblemWithTrace) {
		if err != nil {
			c.JSON(err.Problem.Status, err.Problem)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

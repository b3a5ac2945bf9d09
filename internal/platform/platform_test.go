package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/store"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/utils"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/onflow/flow-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	authority = flow.HexToAddress("0a")
	treasury  = flow.HexToAddress("0e")
	stranger  = flow.HexToAddress("0c")
)

func initializedService(t *testing.T) (*Service, *store.MemoryStore) {
	s := store.NewMemoryStore()
	svc := NewService(s)
	_, problem := svc.Initialize(context.Background(), authority, treasury, settlement.Fees{PlatformBps: 500, TreasuryBps: 1000})
	require.Nil(t, problem)
	return svc, s
}

func TestInitialize_Once(t *testing.T) {
	svc, _ := initializedService(t)

	_, problem := svc.Initialize(context.Background(), stranger, treasury, settlement.Fees{})
	require.NotNil(t, problem)
	assert.ErrorIs(t, problem, reject.ErrPlatformAlreadyInit)

	p, problem := svc.Get(context.Background())
	require.Nil(t, problem)
	assert.Equal(t, authority, p.Authority)
}

func TestInitialize_InvalidFees(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	_, problem := svc.Initialize(context.Background(), authority, treasury, settlement.Fees{PlatformBps: 9000, TreasuryBps: 1001})
	require.NotNil(t, problem)
	assert.ErrorIs(t, problem, reject.ErrInvalidFeeConfiguration)
	assert.Equal(t, http.StatusBadRequest, problem.Problem.Status)

	_, problem = svc.Get(context.Background())
	require.NotNil(t, problem)
	assert.ErrorIs(t, problem, reject.ErrPlatformNotInitialized)
}

func TestAdminOperations_RequireAuthority(t *testing.T) {
	svc, _ := initializedService(t)
	ctx := context.Background()

	_, problem := svc.SetPaused(ctx, stranger, true)
	require.NotNil(t, problem)
	assert.ErrorIs(t, problem, reject.ErrUnauthorized)

	p, problem := svc.SetPaused(ctx, authority, true)
	require.Nil(t, problem)
	assert.True(t, p.Paused)

	_, problem = svc.UpdateFees(ctx, authority, settlement.Fees{PlatformBps: 10000, TreasuryBps: 1})
	require.NotNil(t, problem)
	assert.ErrorIs(t, problem, reject.ErrInvalidFeeConfiguration)

	p, problem = svc.TransferAuthority(ctx, authority, stranger)
	require.Nil(t, problem)
	assert.Equal(t, stranger, p.Authority)

	_, problem = svc.SetPaused(ctx, authority, false)
	require.NotNil(t, problem)
	assert.ErrorIs(t, problem, reject.ErrUnauthorized)
}

func TestWithdrawTreasury(t *testing.T) {
	svc, s := initializedService(t)
	ctx := context.Background()
	require.NoError(t, s.Transaction(ctx, func(tx store.Tx) error {
		p, err := tx.Platform()
		require.NoError(t, err)
		p.Accrue(1000, 300)
		if err := tx.SavePlatform(p); err != nil {
			return err
		}
		return tx.Credit(model.TreasuryVaultAccount, 300)
	}))

	_, problem := svc.WithdrawTreasury(ctx, authority, 301)
	require.NotNil(t, problem)
	assert.ErrorIs(t, problem, reject.ErrInsufficientTreasury)

	p, problem := svc.WithdrawTreasury(ctx, authority, 200)
	require.Nil(t, problem)
	assert.Equal(t, uint64(100), p.TreasuryBalance)

	balance, problem := svc.Balance(ctx, model.WalletAccount(treasury))
	require.Nil(t, problem)
	assert.Equal(t, uint64(200), balance)
}

func TestFundLendingPool(t *testing.T) {
	svc, _ := initializedService(t)
	ctx := context.Background()

	_, problem := svc.FundLendingPool(ctx, authority, 50)
	require.NotNil(t, problem)
	assert.ErrorIs(t, problem, reject.ErrInsufficientFunds)

	require.Nil(t, svc.RecordDeposit(ctx, authority, 80))
	_, problem = svc.FundLendingPool(ctx, authority, 50)
	require.Nil(t, problem)

	pool, problem := svc.Balance(ctx, model.LendingPoolAccount)
	require.Nil(t, problem)
	assert.Equal(t, uint64(50), pool)
}

func TestBridge_ProcessDeposited(t *testing.T) {
	svc, _ := initializedService(t)
	bridge := &platformContractBridge{platformService: svc}

	require.NoError(t, bridge.processDeposited(context.Background(), []byte(`{"address":"0x0c","amount":75}`)))
	assert.Error(t, bridge.processDeposited(context.Background(), []byte(`{"address":"0x0c"}`)))
	assert.Error(t, bridge.processDeposited(context.Background(), []byte(`not json`)))

	balance, problem := svc.Balance(context.Background(), model.WalletAccount(stranger))
	require.Nil(t, problem)
	assert.Equal(t, uint64(75), balance)
}

func testRouter(svc *Service, caller flow.Address) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutesAndSubscriptions(router.Group(""), Dependencies{
		Service: svc,
		VerifyAuthToken: func(c *gin.Context) {
			utils.SetUserAddressCtx(caller, c)
		},
	})
	return router
}

func TestHandler_PauseAndGet(t *testing.T) {
	svc, _ := initializedService(t)
	router := testRouter(svc, authority)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/platform/pause", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/platform", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var p model.Platform
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.True(t, p.Paused)
}

func TestHandler_RejectsStranger(t *testing.T) {
	svc, _ := initializedService(t)
	router := testRouter(svc, stranger)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"platformFeeBps":100,"treasuryFeeBps":100}`)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/platform/fees", body))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var problem reject.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "error.generic.unauthorized", problem.Code)
}

func TestHandler_Balance(t *testing.T) {
	svc, _ := initializedService(t)
	require.Nil(t, svc.RecordDeposit(context.Background(), stranger, 9))
	router := testRouter(svc, stranger)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/balance/0x0c", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"address":"`+stranger.Hex()+`","balance":9}`, rec.Body.String())
}

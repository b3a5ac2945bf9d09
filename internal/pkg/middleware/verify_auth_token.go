package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/utils"
	"github.com/onflow/flow-go-sdk"
	"github.com/rs/zerolog/log"
)

const (
	accessTokenRequired string = "error.token.required"
	accessTokenInvalid  string = "error.token.invalid"
	walletClaimMissing  string = "error.token.wallet-missing"

	walletClaimKey string = "wallet"
)

type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// VerifyAuthToken authenticates the bearer token and puts the caller's wallet
// address on the context.
func VerifyAuthToken(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		idTokenValue := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if idTokenValue == "" {
			log.Warn().Msg("Token missing: 401")
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				reject.NewProblem().
					WithTitle("Missing access token").
					WithStatus(http.StatusUnauthorized).
					WithCode(accessTokenRequired).
					Build())
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), idTokenValue)
		if err != nil {
			log.Warn().Msg(fmt.Sprintf("Error verifying token: %s", err.Error()))
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				reject.NewProblem().
					WithTitle("Cannot verify access token").
					WithStatus(http.StatusUnauthorized).
					WithCode(accessTokenInvalid).
					WithDetail(err.Error()).
					Build())
			return
		}
		wallet, ok := token.Claims[walletClaimKey].(string)
		if !ok || wallet == "" {
			c.AbortWithStatusJSON(
				http.StatusUnauthorized,
				reject.NewProblem().
					WithTitle("Access token carries no wallet").
					WithStatus(http.StatusUnauthorized).
					WithCode(walletClaimMissing).
					Build())
			return
		}
		accessTokenDetails := utils.AccessToken{
			Token:    *token,
			RawToken: idTokenValue,
		}
		utils.SetAccessTokenCtx(&accessTokenDetails, c)
		utils.SetUserAddressCtx(flow.HexToAddress(wallet), c)
		c.Next()
	}
}

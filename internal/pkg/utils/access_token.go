package utils

import (
	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/onflow/flow-go-sdk"
	"net/http"
)

const (
	tokenCtxKey       string = "accessToken"
	userAddressCtxKey string = "userAddress"
)

type AccessToken struct {
	Token    auth.Token
	RawToken string
}

func GetAccessToken(ctx *gin.Context) auth.Token {
	at := getAccessToken(ctx)
	return at.Token
}

func getAccessToken(ctx *gin.Context) AccessToken {
	value, _ := getCtxValue(tokenCtxKey, ctx).(AccessToken)
	return value
}

func GetUserExternalId(ctx *gin.Context) string {
	token := GetAccessToken(ctx)
	return token.Subject
}

// GetUserAddress is the authenticated caller's wallet address.
func GetUserAddress(ctx *gin.Context) flow.Address {
	address, _ := getCtxValue(userAddressCtxKey, ctx).(flow.Address)
	return address
}

func getCtxValue(key string, ctx *gin.Context) any {
	value, exists := ctx.Get(key)
	if !exists {
		ctx.AbortWithStatus(http.StatusInternalServerError)
	}
	return value
}

func SetAccessTokenCtx(token *AccessToken, ctx *gin.Context) {
	ctx.Set(tokenCtxKey, *token)
}

func SetUserAddressCtx(address flow.Address, ctx *gin.Context) {
	ctx.Set(userAddressCtxKey, address)
}

package blockchain

import "github.com/spf13/viper"

func GetAdminAuthorizer() Authorizer {
	return Authorizer{
		KmsResourceId:        viper.GetString("ADMIN_GCP_KMS_RESOURCE_NAME"),
		ResourceOwnerAddress: viper.GetString("ADMIN_AUTHORIZER_ADDR"),
	}
}

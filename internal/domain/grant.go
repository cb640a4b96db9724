package domain

import "net/url"

// OAuth2 form parameter names.
const (
	ParamGrantType    = "grant_type"
	ParamUsername     = "username"
	ParamPassword     = "password"
	ParamRefreshToken = "refresh_token"
	ParamClientID     = "client_id"
	ParamClientSecret = "client_secret"

	GrantPassword     = "password"
	GrantRefreshToken = "refresh_token"
)

// PasswordGrant builds a resource-owner password grant form.
func PasswordGrant(username, password string) url.Values {
	return url.Values{
		ParamGrantType: {GrantPassword},
		ParamUsername:  {username},
		ParamPassword:  {password},
	}
}

// RefreshGrant builds a refresh_token grant form.
func RefreshGrant(refreshToken string) url.Values {
	return url.Values{
		ParamGrantType:    {GrantRefreshToken},
		ParamRefreshToken: {refreshToken},
	}
}

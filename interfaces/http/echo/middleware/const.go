package middleware

const (
	Authorization   = "Authorization"
	TokenCookie     = "access_token" // fallback cookie holding the raw access token
	TokenKey        = "requestToken"
	TokenSourceKey  = "requestTokenSource"
	SessionUserKey  = "sessionUser"
	SessionRouteKey = "sessionRoute"
	bearerPrefix    = "Bearer "
)

// Where SetTokenInContext found the request token.
const (
	TokenSourceHeader = "header"
	TokenSourceCookie = "cookie"
)

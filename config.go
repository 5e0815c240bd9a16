package auth

// SimpleConfig is a plain value implementation of Config, handy for
// wiring from whatever configuration loader the host app uses.
type SimpleConfig struct {
	SigningKey            string      `json:"signing_key" koanf:"signing_key"`
	SigningMethod         string      `json:"signing_method" koanf:"signing_method"`
	ContextKey            string      `json:"context_key" koanf:"context_key"`
	TokenExpiration       int         `json:"token_expiration" koanf:"token_expiration"`
	ExtendedTokenDuration int         `json:"extended_token_duration" koanf:"extended_token_duration"`
	TokenLookup           string      `json:"token_lookup" koanf:"token_lookup"`
	AuthScheme            string      `json:"auth_scheme" koanf:"auth_scheme"`
	Issuer                string      `json:"issuer" koanf:"issuer"`
	Audience              []string    `json:"audience" koanf:"audience"`
	RejectedRouteKey      string      `json:"rejected_route_key" koanf:"rejected_route_key"`
	RejectedRouteDefault  string      `json:"rejected_route_default" koanf:"rejected_route_default"`
	Environment           Environment `json:"environment" koanf:"environment"`
}

var _ Config = (*SimpleConfig)(nil)

func (c *SimpleConfig) GetSigningKey() string { return c.SigningKey }

func (c *SimpleConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return "HS256"
	}
	return c.SigningMethod
}

// GetContextKey is the locals key the middleware stores claims under,
// and also the session cookie name.
func (c *SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "jwt"
	}
	return c.ContextKey
}

// GetTokenExpiration is the token lifetime in hours.
func (c *SimpleConfig) GetTokenExpiration() int {
	if c.TokenExpiration == 0 {
		return 24
	}
	return c.TokenExpiration
}

func (c *SimpleConfig) GetExtendedTokenDuration() int { return c.ExtendedTokenDuration }

// GetTokenLookup orders token extraction: the Authorization header wins
// over the session cookie.
func (c *SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return "header:Authorization,cookie:" + c.GetContextKey()
	}
	return c.TokenLookup
}

func (c *SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c *SimpleConfig) GetIssuer() string { return c.Issuer }

func (c *SimpleConfig) GetAudience() []string { return c.Audience }

func (c *SimpleConfig) GetRejectedRouteKey() string {
	if c.RejectedRouteKey == "" {
		return "rejected_route"
	}
	return c.RejectedRouteKey
}

func (c *SimpleConfig) GetRejectedRouteDefault() string {
	if c.RejectedRouteDefault == "" {
		return "/"
	}
	return c.RejectedRouteDefault
}

func (c *SimpleConfig) GetEnvironment() Environment {
	if c.Environment == "" {
		return EnvDevelopment
	}
	return c.Environment
}

package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/latasoft/confiaticket-checkout/pkg/response"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrInvalidToken      = errors.New("invalid token")
)

// Context keys for buyer information
const (
	ContextKeyUserID      = "user_id"
	ContextKeyAccessToken = "access_token"
)

// JWTConfig holds configuration for JWT middleware
type JWTConfig struct {
	// Secret key for validating HMAC-signed tokens issued by the auth backend
	Secret string
	// Issuer, when set, must match the iss claim
	Issuer string
	// SkipPaths is a list of paths that should skip JWT validation
	SkipPaths []string
	// Optional lets anonymous requests through; a present but invalid token still fails
	Optional bool
}

// JWTMiddleware validates the bearer token and exposes the buyer in the gin context.
// The raw token is kept so calls to the ticketing backend act on the buyer's behalf.
func JWTMiddleware(config *JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, path := range config.SkipPaths {
			if c.Request.URL.Path == path {
				c.Next()
				return
			}
		}

		tokenString, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) && config.Optional {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized(err.Error()))
			return
		}

		var parserOpts []jwt.ParserOption
		if config.Issuer != "" {
			parserOpts = append(parserOpts, jwt.WithIssuer(config.Issuer))
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(config.Secret), nil
		}, parserOpts...)
		if err != nil || !token.Valid {
			message := "Invalid access token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				message = "Access token has expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized(message))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("Invalid token claims"))
			return
		}

		userID := claimString(claims, "user_id")
		if userID == "" {
			userID = claimString(claims, "sub")
		}
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Unauthorized("Missing user_id in token"))
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyAccessToken, tokenString)

		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", ErrInvalidAuthFormat
	}
	return token, nil
}

// claimString reads a string claim; numeric ids are formatted without a fraction
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) (string, bool) {
	return getString(c, ContextKeyUserID)
}

// GetAccessToken returns the validated bearer token for forwarding
func GetAccessToken(c *gin.Context) (string, bool) {
	return getString(c, ContextKeyAccessToken)
}

func getString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

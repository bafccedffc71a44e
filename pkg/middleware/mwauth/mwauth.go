package mwauth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/go-chi/render"

	"garage-service/internal/models"
	"garage-service/pkg/response"
	"garage-service/pkg/sl"
)

type contextKey struct{}

var actorKey contextKey

// Claims are the JWT claims issued by the auth service. MechanicID and
// CustomerID are present only for the matching roles.
type Claims struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	MechanicID string `json:"mechanic_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
	jwt.RegisteredClaims
}

// New returns middleware that validates the Bearer token and stores the
// resulting actor in the request context.
func New(log *slog.Logger, secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		log = log.With(
			slog.String("component", "middleware/auth"),
		)

		fn := func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error(string(response.UNAUTHORIZED), "authorization header is required"))
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error(string(response.UNAUTHORIZED), "token must be in format: Bearer <token>"))
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))

			if err != nil || !token.Valid {
				if err != nil {
					log.Debug("Token validation failed", sl.Err(err))
				}
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error(string(response.UNAUTHORIZED), "token is invalid or expired"))
				return
			}

			actor := models.Actor{
				UserID:     claims.UserID,
				Role:       models.Role(claims.Role),
				MechanicID: claims.MechanicID,
				CustomerID: claims.CustomerID,
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		}

		return http.HandlerFunc(fn)
	}
}

func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(models.Actor)
	return actor, ok
}

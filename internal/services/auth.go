package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/apierr"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/osuapi"
	"github.com/pandemonium-osu/pandemonium-backend/internal/queue"
	"github.com/pandemonium-osu/pandemonium-backend/internal/repos"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

const (
	sessionTTL    = 30 * 24 * time.Hour
	oauthStateTTL = 5 * time.Minute
)

type AuthService interface {
	// AuthorizeURL mints a one-time state nonce and returns the upstream
	// authorization redirect target.
	AuthorizeURL(ctx context.Context) (string, error)
	// HandleCallback finishes the code exchange: verifies the state,
	// bootstraps the player row, enqueues a sync, and issues a session token.
	HandleCallback(ctx context.Context, code, state string) (string, *types.Player, error)
	// VerifySessionToken validates a session JWT and returns the player id.
	VerifySessionToken(tokenString string) (int64, error)
}

type authService struct {
	log        *logger.Logger
	osu        osuapi.Client
	playerRepo repos.PlayerRepo
	queue      queue.Queue
	jwtSecret  []byte
}

func NewAuthService(
	log *logger.Logger,
	osu osuapi.Client,
	playerRepo repos.PlayerRepo,
	q queue.Queue,
	jwtSecret string,
) (AuthService, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("missing JWT_SECRET")
	}
	return &authService{
		log:        log.With("service", "AuthService"),
		osu:        osu,
		playerRepo: playerRepo,
		queue:      q,
		jwtSecret:  []byte(jwtSecret),
	}, nil
}

func (s *authService) AuthorizeURL(ctx context.Context) (string, error) {
	state, err := randomState()
	if err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	if err := s.queue.PutState(ctx, state, oauthStateTTL); err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	return s.osu.AuthorizeURL(state), nil
}

func (s *authService) HandleCallback(ctx context.Context, code, state string) (string, *types.Player, error) {
	ok, err := s.queue.ConsumeState(ctx, state)
	if err != nil {
		return "", nil, fmt.Errorf("verify oauth state: %w", err)
	}
	if !ok {
		return "", nil, apierr.Errorf(http.StatusBadRequest, "invalid_state", "invalid or expired oauth state")
	}

	token, err := s.osu.ExchangeCode(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("oauth code exchange: %w", err)
	}
	upstream, err := s.osu.GetOwnUser(ctx, token.AccessToken)
	if err != nil {
		return "", nil, fmt.Errorf("fetch authenticated user: %w", err)
	}

	player := PlayerFromUpstream(upstream)
	if err := s.playerRepo.Upsert(ctx, nil, player); err != nil {
		return "", nil, fmt.Errorf("bootstrap player: %w", err)
	}
	if err := s.queue.Enqueue(ctx, queue.PlayerQueue, player.ID); err != nil {
		// login still succeeds; the next activity sync will pick them up
		s.log.Warn("failed to enqueue player after login", "player_id", player.ID, "error", err)
	}

	session, err := s.generateSessionToken(player.ID)
	if err != nil {
		return "", nil, err
	}

	s.log.Info("player logged in", "player_id", player.ID, "username", player.Username)
	return session, player, nil
}

func (s *authService) generateSessionToken(playerID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(playerID, 10),
		"iat": now.Unix(),
		"exp": now.Add(sessionTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *authService) VerifySessionToken(tokenString string) (int64, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, apierr.Errorf(http.StatusUnauthorized, "invalid_session", "invalid session token")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, apierr.Errorf(http.StatusUnauthorized, "invalid_session", "malformed session claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return 0, apierr.Errorf(http.StatusUnauthorized, "invalid_session", "missing subject claim")
	}
	playerID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, apierr.Errorf(http.StatusUnauthorized, "invalid_session", "non-numeric subject claim")
	}
	return playerID, nil
}

// PlayerFromUpstream maps the upstream user shape onto the players row.
func PlayerFromUpstream(u *osuapi.User) *types.Player {
	player := &types.Player{
		ID:           u.ID,
		Username:     u.Username,
		Country:      u.Country.Code,
		MainMode:     u.Playmode,
		LastSyncedAt: time.Now().Unix(),
	}
	if u.JoinDate != nil {
		player.JoinedAt = u.JoinDate.Unix()
	}
	if u.Statistics != nil {
		player.PP = u.Statistics.PP
		player.Rank = u.Statistics.GlobalRank
		player.CountryRank = u.Statistics.CountryRank
	}
	return player
}

func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package requestdata

import (
	"context"

	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

var requestDataKey = struct{}{}

// RequestData is the per-request authentication context installed by the
// session middleware.
type RequestData struct {
	TokenString string
	PlayerID    int64
	Player      *types.Player
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(requestDataKey).(*RequestData); ok {
		return rd
	}
	return nil
}

// CurrentPlayer returns the authenticated player, or nil outside a session.
func CurrentPlayer(ctx context.Context) *types.Player {
	rd := GetRequestData(ctx)
	if rd == nil {
		return nil
	}
	return rd.Player
}

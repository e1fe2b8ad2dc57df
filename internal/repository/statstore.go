package repository

import (
	"fmt"
	"strings"

	"github.com/ElementalEngine/core-api-backend/internal/models"
)

// StatStore identifies exactly one aggregate-stats collection: a game
// title's seasonal or lifetime space, and within it one bucket composed
// of the cloud/realtime prefix and either the match type or the literal
// combined label.
type StatStore struct {
	Game     string
	Seasonal bool
	Bucket   string
}

// Key renders a stable identifier, used for cache keys and logs.
func (s StatStore) Key() string {
	space := "lifetime"
	if s.Seasonal {
		space = "season"
	}
	return s.Game + ":" + space + ":" + s.Bucket
}

const (
	bucketCloudPrefix    = "pbc_"
	bucketRealtimePrefix = "rt_"
	bucketCombined       = "combined"
)

// ResolveStatStore routes a (cloud, match type, title, seasonal,
// combined) combination to its stats collection. Pure; an unknown title
// or missing match type is a caller error.
func ResolveStatStore(isCloud bool, matchType, game string, seasonal, combined bool) (StatStore, error) {
	switch game {
	case models.GameCiv6, models.GameCiv7:
	default:
		return StatStore{}, fmt.Errorf("unknown game title %q", game)
	}

	label := bucketCombined
	if !combined {
		// Match types arrive in mixed case from the parser and from
		// operators. Labels are normalized to lower case so every read
		// and write lands on one bucket per mode.
		label = strings.ToLower(matchType)
		if label == "" {
			return StatStore{}, fmt.Errorf("match type is empty")
		}
	}

	prefix := bucketRealtimePrefix
	if isCloud {
		prefix = bucketCloudPrefix
	}

	return StatStore{Game: game, Seasonal: seasonal, Bucket: prefix + label}, nil
}

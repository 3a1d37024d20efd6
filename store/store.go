package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is an exported constant or variable used by the token engine.
var ErrUnavailable = errors.New("token store unavailable")

// DefaultKeyPrefix is an exported constant or variable used by the token engine.
const DefaultKeyPrefix = "tc"

// minEntryTTL is the floor applied to every write so that a marker created
// in the final millisecond of a token's life still lands with a valid TTL.
const minEntryTTL = time.Second

// Store defines a public type used by tokencore APIs.
//
// Store instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New describes the new operation and its observable behavior.
//
// New may return an error when input validation, dependency calls, or security checks fail.
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) refreshKey(jti string) string {
	return s.prefix + ":refreshtoken:" + jti
}

func (s *Store) usedKey(jti string) string {
	return s.prefix + ":refreshused:" + jti
}

func (s *Store) usesKey(jti string) string {
	return s.prefix + ":refreshuses:" + jti
}

func (s *Store) blacklistKey(jti string) string {
	return s.prefix + ":blacklist:" + jti
}

func (s *Store) userSetKey(userID string) string {
	return s.prefix + ":usertokens:" + userID
}

func (s *Store) refreshKeyPrefix() string {
	return s.prefix + ":refreshtoken:"
}

func (s *Store) usedKeyPrefix() string {
	return s.prefix + ":refreshused:"
}

func clampTTL(ttl time.Duration) time.Duration {
	if ttl < minEntryTTL {
		return minEntryTTL
	}
	return ttl
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// SaveRefresh writes the active record for a freshly minted refresh token.
func (s *Store) SaveRefresh(ctx context.Context, jti string, rec RefreshRecord, ttl time.Duration) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return wrapErr(s.rdb.Set(ctx, s.refreshKey(jti), data, clampTTL(ttl)).Err())
}

// DeleteRefresh removes the active record. Deleting an absent record is not
// an error.
func (s *Store) DeleteRefresh(ctx context.Context, jti string) error {
	return wrapErr(s.rdb.Del(ctx, s.refreshKey(jti)).Err())
}

// MarkRefreshUsed atomically writes the consumed marker for a jti. The
// boolean reports whether this caller won: false means the marker already
// existed and the token was redeemed before. Exactly one concurrent caller
// observes true.
func (s *Store) MarkRefreshUsed(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	won, err := s.rdb.SetNX(ctx, s.usedKey(jti), "1", clampTTL(ttl)).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return won, nil
}

// IsRefreshUsed reports whether a jti's consumed marker exists.
func (s *Store) IsRefreshUsed(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.usedKey(jti)).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

// IncrementRefreshUses bumps the redemption counter for a jti and returns
// the new count. The counter's TTL is fixed on first increment so it expires
// with the token.
func (s *Store) IncrementRefreshUses(ctx context.Context, jti string, ttl time.Duration) (int64, error) {
	n, err := incrWithTTLLua.Run(ctx, s.rdb, []string{s.usesKey(jti)}, clampTTL(ttl).Milliseconds()).Int64()
	if err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}

// Blacklist writes the deny-list marker for a jti. TTL must not exceed the
// token's remaining lifetime; once the token expires naturally the marker is
// dead weight.
func (s *Store) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	return wrapErr(s.rdb.Set(ctx, s.blacklistKey(jti), "1", clampTTL(ttl)).Err())
}

// IsBlacklisted reports whether a jti is on the deny-list. This is the only
// store call on the access-token hot path.
func (s *Store) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.blacklistKey(jti)).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

// AddUserToken records set membership for a user's outstanding refresh jti.
// The set TTL is refreshed to the incoming token's lifetime, which is always
// the longest-lived member at write time.
func (s *Store) AddUserToken(ctx context.Context, userID, jti string, ttl time.Duration) error {
	pipe := s.rdb.TxPipeline()
	pipe.SAdd(ctx, s.userSetKey(userID), jti)
	pipe.Expire(ctx, s.userSetKey(userID), clampTTL(ttl))
	_, err := pipe.Exec(ctx)
	return wrapErr(err)
}

// UserTokens returns the user's outstanding refresh jtis. A missing set
// yields an empty slice, not an error.
func (s *Store) UserTokens(ctx context.Context, userID string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, s.userSetKey(userID)).Result()
	if err != nil {
		return nil, wrapErr(err)
	}
	return members, nil
}

// RemoveUserToken drops one jti from the user's set.
func (s *Store) RemoveUserToken(ctx context.Context, userID, jti string) error {
	return wrapErr(s.rdb.SRem(ctx, s.userSetKey(userID), jti).Err())
}

// RefreshRecords fetches the live records for the given jtis in one round
// trip. Entries that have expired or been deleted are skipped; the returned
// map is keyed by jti.
func (s *Store) RefreshRecords(ctx context.Context, jtis []string) (map[string]RefreshRecord, error) {
	if len(jtis) == 0 {
		return map[string]RefreshRecord{}, nil
	}

	keys := make([]string, len(jtis))
	for i, jti := range jtis {
		keys[i] = s.refreshKey(jti)
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapErr(err)
	}

	out := make(map[string]RefreshRecord, len(jtis))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			continue
		}
		out[jtis[i]] = rec
	}
	return out, nil
}

// RevokeAllForUser consumes every outstanding refresh token of the user and
// deletes the membership set, atomically. Returns the number of tokens
// consumed; a user with no active tokens is a zero-count no-op.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string, fallbackTTL time.Duration) (int64, error) {
	n, err := revokeAllLua.Run(
		ctx,
		s.rdb,
		[]string{s.userSetKey(userID)},
		s.refreshKeyPrefix(),
		s.usedKeyPrefix(),
		clampTTL(fallbackTTL).Milliseconds(),
	).Int64()
	if err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}

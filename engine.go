package tokencore

import (
	"context"
	"errors"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/exchangekit/tokencore/store"
	"github.com/exchangekit/tokencore/token"
)

// Engine defines a public type used by tokencore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config  Config
	codec   *token.Codec
	tokens  *store.Store
	audit   *auditDispatcher
	metrics *Metrics
	now     func() time.Time
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// storeCtx bounds one store round-trip with the configured operation
// timeout so the hot path never hangs on a dead backend.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.config.Store.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.Store.OpTimeout)
}

// mapDecodeErr collapses codec failures at the engine boundary. Expiry stays
// distinguishable so callers can tell "re-authenticate" from "reject".
func mapDecodeErr(err error) error {
	if errors.Is(err, token.ErrExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}

func (e *Engine) mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		e.metricInc(MetricStoreUnavailable)
		return ErrStoreUnavailable
	}
	return err
}

// Mint issues a fresh access/refresh pair for an already-verified
// principal and records the refresh bookkeeping. It fails only on invalid
// input or an unreachable store.
func (e *Engine) Mint(ctx context.Context, principal Principal) (*TokenPair, error) {
	if e == nil || e.codec == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if principal.ID == "" {
		return nil, ErrPrincipalInvalid
	}

	pair, err := e.mintPair(ctx, principal)
	if err != nil {
		e.metricInc(MetricMintFailure)
		e.emitAudit(ctx, auditEventMint, false, principal.ID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricMintSuccess)
	e.emitAudit(ctx, auditEventMint, true, principal.ID, "", nil, nil)
	return pair, nil
}

// mintPair is the shared issuance path for Mint and Rotate. Metrics and
// audit belong to the callers; this only encodes and writes bookkeeping.
func (e *Engine) mintPair(ctx context.Context, principal Principal) (*TokenPair, error) {
	now := e.now()
	accessTTL := e.config.Token.AccessTTL
	refreshTTL := e.config.Token.RefreshTTL

	accessClaims := claimsFor(principal, token.KindAccess, e.config.Token.Issuer, uuid.NewString(), now, accessTTL)
	access, err := e.codec.Encode(accessClaims)
	if err != nil {
		return nil, err
	}

	refreshClaims := claimsFor(principal, token.KindRefresh, e.config.Token.Issuer, uuid.NewString(), now, refreshTTL)
	refresh, err := e.codec.Encode(refreshClaims)
	if err != nil {
		return nil, err
	}

	rec := store.RefreshRecord{
		UserID:    principal.ID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(refreshTTL).Unix(),
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.tokens.SaveRefresh(sctx, refreshClaims.ID, rec, refreshTTL); err != nil {
		return nil, e.mapStoreErr(err)
	}
	if err := e.tokens.AddUserToken(sctx, principal.ID, refreshClaims.ID, refreshTTL); err != nil {
		return nil, e.mapStoreErr(err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        TokenTypeBearer,
		AccessExpiresIn:  int64(accessTTL / time.Second),
		RefreshExpiresIn: int64(refreshTTL / time.Second),
		NeedsRefreshSoon: accessTTL <= e.config.Token.ExpirySoonThreshold,
	}, nil
}

// ValidateAccess verifies an access token and returns the principal view
// embedded in it. One store read (blacklist), no writes. Codec failures
// collapse to ErrTokenInvalid, except expiry which surfaces as
// ErrTokenExpired; an unreachable store rejects the request rather than
// failing open.
func (e *Engine) ValidateAccess(ctx context.Context, tokenStr string) (*PrincipalView, error) {
	if e == nil || e.codec == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	claims, err := e.codec.Decode(tokenStr)
	if err != nil {
		e.metricInc(MetricValidateInvalid)
		return nil, mapDecodeErr(err)
	}
	if claims.Kind != token.KindAccess {
		e.metricInc(MetricValidateInvalid)
		return nil, ErrWrongTokenKind
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	revoked, err := e.tokens.IsBlacklisted(sctx, claims.ID)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}
	if revoked {
		e.metricInc(MetricValidateRevoked)
		e.emitAudit(ctx, auditEventValidateDeny, false, claims.Subject, claims.ID, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	e.metricInc(MetricValidateSuccess)
	return viewFromClaims(claims), nil
}

// Rotate redeems a refresh token for a fresh pair. The used-marker write is
// the single atomic step: under concurrent redemption of one token exactly
// one caller wins and every other caller gets ErrRefreshAlreadyUsed.
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.codec == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Decode(refreshToken)
	if err != nil {
		mapped := mapDecodeErr(err)
		e.metricInc(MetricRotateInvalid)
		e.emitAudit(ctx, auditEventRotateInvalid, false, "", "", mapped, nil)
		return nil, mapped
	}
	if claims.Kind != token.KindRefresh {
		e.metricInc(MetricRotateInvalid)
		e.emitAudit(ctx, auditEventRotateInvalid, false, claims.Subject, claims.ID, ErrWrongTokenKind, nil)
		return nil, ErrWrongTokenKind
	}

	remaining := claims.Remaining(e.now())

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	revoked, err := e.tokens.IsBlacklisted(sctx, claims.ID)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}
	if revoked {
		e.metricInc(MetricRotateInvalid)
		e.emitAudit(ctx, auditEventRotateInvalid, false, claims.Subject, claims.ID, ErrTokenRevoked, nil)
		return nil, ErrTokenRevoked
	}

	if e.config.Token.RefreshMaxUses > 1 {
		return e.rotateCounted(ctx, sctx, refreshToken, claims, remaining)
	}

	won, err := e.tokens.MarkRefreshUsed(sctx, claims.ID, remaining)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}
	if !won {
		e.metricInc(MetricRotateReplay)
		e.emitAudit(ctx, auditEventRotateReplay, false, claims.Subject, claims.ID, ErrRefreshAlreadyUsed, nil)
		return nil, ErrRefreshAlreadyUsed
	}

	return e.finishRotation(ctx, sctx, claims)
}

// rotateCounted is the explicit use-count alternate: one refresh token may
// be redeemed RefreshMaxUses times, each redemption yielding a new access
// token, and the final redemption consumes it with a full rotation.
func (e *Engine) rotateCounted(ctx, sctx context.Context, refreshToken string, claims *token.Claims, remaining time.Duration) (*TokenPair, error) {
	// Revoke and RevokeAll consume a refresh token by writing its used
	// marker, so the marker must gate every redemption here too, not only
	// the exhausting one.
	used, err := e.tokens.IsRefreshUsed(sctx, claims.ID)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}
	if used {
		e.metricInc(MetricRotateReplay)
		e.emitAudit(ctx, auditEventRotateReplay, false, claims.Subject, claims.ID, ErrRefreshAlreadyUsed, nil)
		return nil, ErrRefreshAlreadyUsed
	}

	uses, err := e.tokens.IncrementRefreshUses(sctx, claims.ID, remaining)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}

	if uses < int64(e.config.Token.RefreshMaxUses) {
		now := e.now()
		accessClaims := claimsFor(principalFromClaims(claims), token.KindAccess, e.config.Token.Issuer, uuid.NewString(), now, e.config.Token.AccessTTL)
		access, err := e.codec.Encode(accessClaims)
		if err != nil {
			return nil, err
		}

		e.metricInc(MetricRotateSuccess)
		e.emitAudit(ctx, auditEventRotateSuccess, true, claims.Subject, claims.ID, nil, func() map[string]string {
			return map[string]string{"policy": "use_count"}
		})

		return &TokenPair{
			AccessToken:      access,
			RefreshToken:     refreshToken,
			TokenType:        TokenTypeBearer,
			AccessExpiresIn:  int64(e.config.Token.AccessTTL / time.Second),
			RefreshExpiresIn: int64(remaining / time.Second),
			NeedsRefreshSoon: e.config.Token.AccessTTL <= e.config.Token.ExpirySoonThreshold,
		}, nil
	}

	// Counter exhausted: fall back to the single-use guard so concurrent
	// final redemptions still produce exactly one winner.
	won, err := e.tokens.MarkRefreshUsed(sctx, claims.ID, remaining)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}
	if !won {
		e.metricInc(MetricRotateReplay)
		e.emitAudit(ctx, auditEventRotateReplay, false, claims.Subject, claims.ID, ErrRefreshAlreadyUsed, nil)
		return nil, ErrRefreshAlreadyUsed
	}

	return e.finishRotation(ctx, sctx, claims)
}

func (e *Engine) finishRotation(ctx, sctx context.Context, claims *token.Claims) (*TokenPair, error) {
	pair, err := e.mintPair(ctx, principalFromClaims(claims))
	if err != nil {
		e.metricInc(MetricRotateInvalid)
		e.emitAudit(ctx, auditEventRotateInvalid, false, claims.Subject, claims.ID, err, nil)
		return nil, err
	}

	// The old token is already consumed; record cleanup is best-effort and
	// must not fail an otherwise successful rotation.
	if err := e.tokens.DeleteRefresh(sctx, claims.ID); err != nil {
		log.Print("tokencore: stale refresh record cleanup failed")
	}
	if err := e.tokens.RemoveUserToken(sctx, claims.Subject, claims.ID); err != nil {
		log.Print("tokencore: user token set cleanup failed")
	}

	e.metricInc(MetricRotateSuccess)
	e.emitAudit(ctx, auditEventRotateSuccess, true, claims.Subject, claims.ID, nil, nil)
	return pair, nil
}

// Revoke invalidates the given tokens ("logout"). Either argument may be
// empty. A token that no longer decodes is already harmless, so it is
// skipped silently: revocation is idempotent and never fails on stale
// input, only on an unreachable store.
func (e *Engine) Revoke(ctx context.Context, accessToken, refreshToken string) error {
	if e == nil || e.codec == nil || e.tokens == nil {
		return ErrEngineNotReady
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if accessToken != "" {
		claims, err := e.codec.Decode(accessToken)
		if err == nil && claims.Kind == token.KindAccess {
			if err := e.tokens.Blacklist(sctx, claims.ID, claims.Remaining(e.now())); err != nil {
				return e.mapStoreErr(err)
			}
			e.metricInc(MetricRevoke)
			e.emitAudit(ctx, auditEventRevoke, true, claims.Subject, claims.ID, nil, func() map[string]string {
				return map[string]string{"kind": "access"}
			})
		}
	}

	if refreshToken != "" {
		claims, err := e.codec.Decode(refreshToken)
		if err == nil && claims.Kind == token.KindRefresh {
			remaining := claims.Remaining(e.now())
			if _, err := e.tokens.MarkRefreshUsed(sctx, claims.ID, remaining); err != nil {
				return e.mapStoreErr(err)
			}
			if err := e.tokens.DeleteRefresh(sctx, claims.ID); err != nil {
				return e.mapStoreErr(err)
			}
			if err := e.tokens.RemoveUserToken(sctx, claims.Subject, claims.ID); err != nil {
				return e.mapStoreErr(err)
			}
			e.metricInc(MetricRevoke)
			e.emitAudit(ctx, auditEventRevoke, true, claims.Subject, claims.ID, nil, func() map[string]string {
				return map[string]string{"kind": "refresh"}
			})
		}
	}

	return nil
}

// RevokeAll consumes every outstanding refresh token of the user in one
// atomic store call ("log out everywhere"). A user with no active tokens
// is a no-op success.
func (e *Engine) RevokeAll(ctx context.Context, userID string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrPrincipalInvalid
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	n, err := e.tokens.RevokeAllForUser(sctx, userID, e.config.Token.RefreshTTL)
	if err != nil {
		return e.mapStoreErr(err)
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"revoked": formatCount(n)}
	})
	return nil
}

// IsExpiringSoon reports whether an access token is inside the configured
// refresh threshold. Pure decode, no store access, no side effects. Only
// access tokens are meaningful here; a refresh token is rejected with
// ErrWrongTokenKind. An already-expired token returns ErrTokenExpired: the
// holder must re-authenticate, not rotate.
func (e *Engine) IsExpiringSoon(tokenStr string) (bool, error) {
	if e == nil || e.codec == nil {
		return false, ErrEngineNotReady
	}

	claims, err := e.codec.Decode(tokenStr)
	if err != nil {
		return false, mapDecodeErr(err)
	}
	if claims.Kind != token.KindAccess {
		return false, ErrWrongTokenKind
	}

	return claims.Remaining(e.now()) <= e.config.Token.ExpirySoonThreshold, nil
}

// ActiveTokenCount reports how many refresh tokens the user currently has
// outstanding across devices.
func (e *Engine) ActiveTokenCount(ctx context.Context, userID string) (int, error) {
	if e == nil || e.tokens == nil {
		return 0, ErrEngineNotReady
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	members, err := e.tokens.UserTokens(sctx, userID)
	if err != nil {
		return 0, e.mapStoreErr(err)
	}
	return len(members), nil
}

// ListActiveTokens enumerates the user's outstanding refresh tokens, newest
// first. Set members whose records already expired are skipped; the set
// itself expires with its longest-lived member.
func (e *Engine) ListActiveTokens(ctx context.Context, userID string) ([]TokenInfo, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	members, err := e.tokens.UserTokens(sctx, userID)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	records, err := e.tokens.RefreshRecords(sctx, members)
	if err != nil {
		return nil, e.mapStoreErr(err)
	}

	infos := make([]TokenInfo, 0, len(records))
	for jti, rec := range records {
		infos = append(infos, TokenInfo{
			ID:        jti,
			IssuedAt:  time.Unix(rec.IssuedAt, 0),
			ExpiresAt: time.Unix(rec.ExpiresAt, 0),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].IssuedAt.After(infos[j].IssuedAt)
	})
	return infos, nil
}

func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}

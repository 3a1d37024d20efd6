// Package store is the Redis-backed bookkeeping layer for tokencore.
//
// Every entry it writes carries a TTL derived from the remaining lifetime of
// the token it tracks, so the keyspace is self-garbage-collecting: no sweep
// job is needed for correctness. Four key families exist, all indexed by jti
// (never by token string or username):
//
//	{prefix}:refreshtoken:{jti}  active refresh record (JSON)
//	{prefix}:refreshused:{jti}   consumed marker, written with SETNX
//	{prefix}:refreshuses:{jti}   redemption counter (use-count policy only)
//	{prefix}:blacklist:{jti}     deny-list marker
//	{prefix}:usertokens:{user}   SET of the user's outstanding refresh jtis
//
// The SETNX write behind MarkRefreshUsed is the only mutual exclusion in the
// system: it is what makes refresh tokens single-use under concurrent
// redemption. Multi-key mutations (revoke-all) run as a single Lua script so
// they cannot interleave with concurrent rotations.
//
// Transport failures surface as [ErrUnavailable]; callers must treat that as
// "cannot verify", never as "not revoked".
package store

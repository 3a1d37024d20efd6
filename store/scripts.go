package store

import "github.com/redis/go-redis/v9"

// revokeAllScript consumes every outstanding refresh token of one user in a
// single atomic step: each member of the user set gets a used marker whose
// TTL mirrors the live record's remaining lifetime (falling back to ARGV[3]
// when the record already lapsed), the record itself is deleted, and the set
// is dropped last. Running inside Redis guarantees no rotation can slip in
// between the marker write and the record delete.
const revokeAllScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local revoked = 0
for _, jti in ipairs(members) do
  local refresh_key = ARGV[1] .. jti
  local used_key = ARGV[2] .. jti
  local ttl = redis.call("PTTL", refresh_key)
  if ttl <= 0 then
    ttl = tonumber(ARGV[3])
  end
  redis.call("SET", used_key, "1", "PX", ttl)
  redis.call("DEL", refresh_key)
  revoked = revoked + 1
end
redis.call("DEL", KEYS[1])
return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// incrWithTTLScript increments a counter and pins its TTL on first use, so
// the counter can never outlive the token it counts redemptions for.
const incrWithTTLScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var incrWithTTLLua = redis.NewScript(incrWithTTLScript)

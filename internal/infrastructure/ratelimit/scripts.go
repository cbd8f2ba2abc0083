package ratelimit

import "github.com/redis/go-redis/v9"

// slidingWindowScript trims, counts, conditionally inserts and refreshes the TTL
// of one sorted set in a single atomic step. Inserted entries are scored
// now+1 .. now+points.
//
// KEYS[1] sorted set key
// ARGV[1] now (ms)
// ARGV[2] window (ms)
// ARGV[3] limit
// ARGV[4] points
// ARGV[5] dry run (0/1)
// ARGV[6] exclusive trim bound, "(" .. now-window
// ARGV[7] member prefix, unique per call
//
// Returns {allowed, count, reset_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local points = tonumber(ARGV[4])
local dry_run = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[6])
local count = redis.call('ZCARD', key)

if count + points <= limit then
    if dry_run == 0 then
        for i = 1, points do
            redis.call('ZADD', key, now + i, ARGV[7] .. ':' .. i)
        end
        redis.call('PEXPIRE', key, window_ms + 1000)
        count = count + points
    end
    return {1, count, now + window_ms}
end

local reset = now + window_ms
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
    reset = tonumber(oldest[2]) + window_ms
end
return {0, count, reset}
`)

// fixedWindowScript increments the counter and sets the TTL only when the key was
// created by this increment or carries no TTL. The store clock is returned so the
// reset time does not depend on the caller's clock.
//
// KEYS[1] counter key
// ARGV[1] points
// ARGV[2] window (ms)
//
// Returns {count, pttl_ms, store_now_ms}.
var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local points = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = redis.call('INCRBY', key, points)
local ttl = redis.call('PTTL', key)
if count == points or ttl < 0 then
    redis.call('PEXPIRE', key, window_ms)
    ttl = window_ms
end

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
return {count, ttl, now}
`)

// fixedWindowPeekScript is the read-only dry-run variant of fixedWindowScript.
//
// KEYS[1] counter key
//
// Returns {count, pttl_ms, store_now_ms}.
var fixedWindowPeekScript = redis.NewScript(`
local key = KEYS[1]
local count = tonumber(redis.call('GET', key) or '0')
local ttl = redis.call('PTTL', key)

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
return {count, ttl, now}
`)

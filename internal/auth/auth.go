// Package auth implements the publish/play token checks (spec.md §6's
// Auth algorithms), grounded on original_source/library/common/src/
// auth.rs's Auth::check (the "simple" and "md5" algorithms) and the
// teacher's control_auth.go for the JWT-signing style used by the
// control-plane side channel, re-expressed as a Go type with explicit
// Direction/Algorithm enums instead of Rust's AuthType/AuthAlgorithm.
package auth

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/kaelstream/rtmp-hub/internal/config"
	"github.com/kaelstream/rtmp-hub/internal/handshake"
	"github.com/kaelstream/rtmp-hub/internal/rtmperrors"
)

// Checker validates a publish or play token against the configured
// algorithm and key, per spec.md §6.
type Checker struct {
	mode      config.AuthMode
	direction config.AuthDirection
	key       string
}

// New builds a Checker from server configuration.
func New(cfg *config.Config) *Checker {
	return &Checker{mode: cfg.AuthMode, direction: cfg.AuthDirection, key: cfg.AuthKey}
}

// required reports whether the given operation (publish=push,
// play=pull) needs a token under the configured direction.
func (c *Checker) required(isPull bool) bool {
	switch c.direction {
	case config.AuthBoth:
		return true
	case config.AuthPull:
		return isPull
	case config.AuthPush:
		return !isPull
	default:
		return false
	}
}

// Authenticate validates token against streamName for a pull (play) or
// push (publish) operation. A direction/mode that doesn't require auth
// for this operation always succeeds, matching Auth::authenticate's
// early-return when auth_type doesn't apply to the current direction.
func (c *Checker) Authenticate(streamName, token string, isPull bool) error {
	if c.mode == config.AuthModeNone || !c.required(isPull) {
		return nil
	}
	if token == "" {
		return rtmperrors.New(rtmperrors.KindAuth, "auth.Authenticate: no token provided")
	}
	if !c.check(streamName, token) {
		return rtmperrors.New(rtmperrors.KindAuth, "auth.Authenticate: token is not correct")
	}
	return nil
}

func (c *Checker) check(streamName, token string) bool {
	switch c.mode {
	case config.AuthModeSimple:
		return handshake.CompareConstantTime([]byte(c.key), []byte(token))
	case config.AuthModeMD5:
		expected := md5Token(c.key, streamName)
		return handshake.CompareConstantTime([]byte(expected), []byte(token))
	default:
		return false
	}
}

// md5Token computes hex(md5(key + streamName)), the exact digest
// original_source's Auth::check builds for AuthAlgorithm::Md5.
func md5Token(key, streamName string) string {
	sum := md5.Sum([]byte(key + streamName))
	return hex.EncodeToString(sum[:])
}

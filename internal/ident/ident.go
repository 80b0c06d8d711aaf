// Package ident generates record identifiers.
package ident

import (
	"encoding/binary"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const randomLen = 9

var (
	mu       sync.Mutex
	lastTick int64
	now      = func() time.Time { return time.Now() }
)

// New returns an identifier made of a random base-36 fragment followed by a
// base-36 millisecond timestamp. The timestamp fragment never repeats or
// goes backwards within a process, so ids are unique within a session.
// No cross-process uniqueness is promised.
func New() string {
	return randomFragment() + timeFragment()
}

func randomFragment() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[:8])
	s := strconv.FormatUint(n, 36)
	if len(s) < randomLen {
		s = strings.Repeat("0", randomLen-len(s)) + s
	}
	return s[:randomLen]
}

func timeFragment() string {
	mu.Lock()
	defer mu.Unlock()

	tick := now().UnixMilli()
	if tick <= lastTick {
		tick = lastTick + 1
	}
	lastTick = tick
	return strconv.FormatInt(tick, 36)
}

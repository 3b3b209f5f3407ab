// Package ids generates the time-prefixed identifiers used across the site.
package ids

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffixLength   = 9
)

const (
	PrefixChat      = "chat"
	PrefixMessage   = "msg"
	PrefixAdminChat = "admin_chat"
	PrefixTab       = "user"
	PrefixVisitor   = "visitor"
	PrefixReview    = "review"
	PrefixAnonymous = "anon"
	PrefixAdmin     = "admin_session"
	PrefixLocal     = "local"
)

var (
	genOnce sync.Once
	gen     func() string
	genMu   sync.Mutex
)

// Suffix returns a random 9-character base36 string.
func Suffix() string {
	genOnce.Do(func() {
		g, err := nanoid.CustomASCII(base36Alphabet, suffixLength)
		if err != nil {
			panic(fmt.Sprintf("ids: nanoid generator: %v", err))
		}
		gen = g
	})
	genMu.Lock()
	defer genMu.Unlock()
	return gen()
}

// New returns "<prefix>_<epoch ms>_<suffix>", e.g. chat_1700000000000_k3j9x0a1b.
func New(prefix string, now time.Time) string {
	return prefix + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + Suffix()
}

// Anonymous returns "anon_<suffix>_<epoch ms>".
func Anonymous(now time.Time) string {
	return PrefixAnonymous + "_" + Suffix() + "_" + strconv.FormatInt(now.UnixMilli(), 10)
}

var (
	pushMu   sync.Mutex
	pushLast int64
	pushSeq  int64
)

// PushKey returns a key for a realtime child. Keys sort in creation order,
// including keys created within the same millisecond.
func PushKey(now time.Time) string {
	ms := now.UnixMilli()

	pushMu.Lock()
	if ms <= pushLast {
		ms = pushLast
		pushSeq++
	} else {
		pushLast = ms
		pushSeq = 0
	}
	seq := pushSeq
	pushMu.Unlock()

	return "-" + pad36(ms, 9) + pad36(seq, 4) + Suffix()
}

func pad36(n int64, width int) string {
	s := strconv.FormatInt(n, 36)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

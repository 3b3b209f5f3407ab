package review

import (
	"context"
	"strconv"
	"unicode/utf16"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/ids"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

// AnonymousName is the display name of visitors without an account.
const AnonymousName = "Anonymous"

// Author identifies who wrote a review.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"username"`
}

// DeriveUserID maps a username to a stable id: a 32-bit rolling hash
// (h = h*31 + c over UTF-16 code units) rendered as "user_" plus the base36
// absolute value.
func DeriveUserID(username string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(username)) {
		h = (h << 5) - h + int32(c)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return ids.PrefixTab + "_" + strconv.FormatInt(abs, 36)
}

// ResolveAuthor returns the author for a signed-in username, or the
// client's persistent anonymous identity when username is empty.
func ResolveAuthor(ctx context.Context, scope *local.Adapter, c clock.Clock, username string) (Author, error) {
	if username != "" {
		return Author{ID: DeriveUserID(username), Name: username}, nil
	}
	if id, ok := local.ReadValue[string](ctx, scope, local.KeyAnonymousID); ok && id != "" {
		return Author{ID: id, Name: AnonymousName}, nil
	}
	id := ids.Anonymous(c.Now())
	if err := local.WriteValue(ctx, scope, local.KeyAnonymousID, id); err != nil {
		return Author{}, err
	}
	return Author{ID: id, Name: AnonymousName}, nil
}

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custompc-tech/storefront/backend/internal/clock"
	"github.com/custompc-tech/storefront/backend/internal/config"
	modelchat "github.com/custompc-tech/storefront/backend/internal/model/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/chat"
	"github.com/custompc-tech/storefront/backend/internal/service/review"
	"github.com/custompc-tech/storefront/backend/internal/storage"
	"github.com/custompc-tech/storefront/backend/internal/storage/kv"
	"github.com/custompc-tech/storefront/backend/internal/storage/local"
)

func seedStore(t *testing.T, path string) {
	t.Helper()
	store, err := storage.Open(config.StoreConfig{Driver: kv.StoreTypePebble, Path: path})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	adapter := local.New(store)
	backend := chat.NewLocalBackend(adapter, clock.Real())
	chatID, err := backend.CreateSession(ctx, modelchat.NewSession{UserID: "sam", UserName: "Sam"})
	require.NoError(t, err)
	_, err = backend.SendMessage(ctx, chatID, modelchat.Message{Text: "hello"})
	require.NoError(t, err)

	_, err = review.NewService(adapter, clock.Real()).Submit(ctx, "photo-pro", review.Author{ID: "user_1", Name: "Sam"}, review.Input{Rating: 5, Text: "great color accuracy"})
	require.NoError(t, err)
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestStorectl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store")
	seedStore(t, path)
	flags := []string{"--driver", "pebble", "--path", path}

	out := run(t, append([]string{"chats"}, flags...)...)
	require.Contains(t, out, "Sam")
	require.Contains(t, out, "1 active chat(s)")

	out = run(t, append([]string{"reviews", "photo-pro"}, flags...)...)
	require.Contains(t, out, "photo-pro: 1 review(s), average 5.0")
	require.Contains(t, out, "great color accuracy")

	out = run(t, append([]string{"keys", local.KeyChatSessions}, flags...)...)
	require.True(t, strings.HasPrefix(out, local.KeyChatSessions), out)
	require.Contains(t, out, "1 key(s)")
}

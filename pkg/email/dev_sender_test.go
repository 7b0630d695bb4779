package email_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/email"
)

func filesWithSuffix(t *testing.T, dir, suffix string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var out []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

func TestDevSender_SendEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("writes body and envelope", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sender := email.NewDevSender(dir)

		params := validParams()
		params.SendToName = "Jane"
		params.BodyText = "plain body"
		params.Tag = "welcome"
		require.NoError(t, sender.SendEmail(ctx, params))

		htmlFiles := filesWithSuffix(t, dir, ".html")
		jsonFiles := filesWithSuffix(t, dir, ".json")
		require.Len(t, htmlFiles, 1)
		require.Len(t, jsonFiles, 1)
		assert.Contains(t, filepath.Base(htmlFiles[0]), "welcome")

		body, err := os.ReadFile(htmlFiles[0])
		require.NoError(t, err)
		assert.Equal(t, params.BodyHTML, string(body))

		raw, err := os.ReadFile(jsonFiles[0])
		require.NoError(t, err)
		var envelope map[string]any
		require.NoError(t, json.Unmarshal(raw, &envelope))
		assert.Equal(t, "user@example.com", envelope["send_to"])
		assert.Equal(t, "Jane", envelope["send_to_name"])
		assert.Equal(t, "Test Subject", envelope["subject"])
		assert.Equal(t, "welcome", envelope["tag"])
		assert.Equal(t, "plain body", envelope["body_text"])
		assert.NotEmpty(t, envelope["timestamp"])
	})

	t.Run("falls back to subject for file name", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		params := validParams()
		params.Tag = ""
		params.Subject = "Password Reset!"
		require.NoError(t, email.NewDevSender(dir).SendEmail(ctx, params))

		htmlFiles := filesWithSuffix(t, dir, ".html")
		require.Len(t, htmlFiles, 1)
		assert.Contains(t, filepath.Base(htmlFiles[0]), "password_reset")
	})

	t.Run("messages in the same second do not collide", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		sender := email.NewDevSender(dir)
		for range 5 {
			require.NoError(t, sender.SendEmail(ctx, validParams()))
		}
		assert.Len(t, filesWithSuffix(t, dir, ".html"), 5)
	})

	t.Run("validation error writes nothing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		params := validParams()
		params.SendTo = ""

		err := email.NewDevSender(dir).SendEmail(ctx, params)
		assert.ErrorIs(t, err, email.ErrInvalidParams)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("unwritable directory", func(t *testing.T) {
		t.Parallel()

		err := email.NewDevSender("/dev/null/cannot-create-here").SendEmail(ctx, validParams())
		assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
		assert.Contains(t, err.Error(), "failed to create directory")
	})
}

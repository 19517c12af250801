package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-digest/internal/config"
	"email-digest/internal/logger"
)

const questionMessage = "From: Alice <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: Quote request\r\n" +
	"Date: Wed, 1 Jan 2025 10:00:00 +0000\r\n" +
	"Message-ID: <root@example.com>\r\n" +
	"\r\n" +
	"Hi Bob, can you quote 40 units?\r\n"

const answerMessage = "From: Bob <bob@example.com>\r\n" +
	"To: alice@example.com\r\n" +
	"Subject: Re: Quote request\r\n" +
	"Date: Wed, 1 Jan 2025 12:30:00 +0000\r\n" +
	"Message-ID: <reply@example.com>\r\n" +
	"In-Reply-To: <root@example.com>\r\n" +
	"\r\n" +
	"Sure, 400 EUR.\r\n"

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReplyTimesFileOrdersByDate(t *testing.T) {
	dir := t.TempDir()
	answer := writeFile(t, dir, "b.eml", answerMessage)
	question := writeFile(t, dir, "a.eml", questionMessage)

	out, err := execute(t, "reply-times-file", "--me", "bob@example.com", answer, question)
	require.NoError(t, err)

	assert.Contains(t, out, "Reply 1 to alice@example.com")
	assert.Contains(t, out, "(2.50 hours)")
}

func TestReplyTimesFileWithoutReplies(t *testing.T) {
	dir := t.TempDir()
	question := writeFile(t, dir, "a.eml", questionMessage)

	out, err := execute(t, "reply-times-file", "--me", "bob@example.com", question)
	require.NoError(t, err)
	assert.Contains(t, out, "No operator replies found")
}

func TestReplyTimesFileMissingFile(t *testing.T) {
	_, err := execute(t, "reply-times-file", "--me", "bob@example.com", filepath.Join(t.TempDir(), "nope.eml"))
	assert.Error(t, err)
}

func TestClassifyRequiresAIKey(t *testing.T) {
	t.Setenv("AI_API_KEY", "")

	_, err := execute(t, "classify", "where", "is", "my", "parcel")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_API_KEY")
}

func TestPipelineOptionsFromConfig(t *testing.T) {
	cfg := &config.Config{
		WorkerCount:         3,
		PollIntervalSeconds: 0.5,
		MaxThreads:          7,
		MaxPolls:            2,
		RetryAttempts:       5,
		RetryBaseDelay:      time.Millisecond,
	}

	opts := pipelineOptions(cfg)

	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, 6, opts.QueueSize)
	assert.Equal(t, 500*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 7, opts.MaxBatch)
	assert.Equal(t, 2, opts.MaxPolls)
	assert.Equal(t, 5, opts.Retry.Attempts)
	assert.Equal(t, time.Millisecond, opts.Retry.BaseDelay)
}

func TestOpenRepositoriesInMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()

	repos, err := openRepositories(ctx, &config.Config{}, log)
	require.NoError(t, err)
	assert.Nil(t, repos.db)
	assert.NoError(t, repos.Close())

	repos, err = openRepositories(ctx, &config.Config{DatabaseURL: ":memory:"}, log)
	require.NoError(t, err)
	require.NotNil(t, repos.db)
	assert.NoError(t, repos.Close())
}

func TestNewSourceRejectsUnknown(t *testing.T) {
	_, err := newSource(context.Background(), &config.Config{MailSource: "pop3"}, logger.Discard())
	assert.Error(t, err)

	src, err := newSource(context.Background(), &config.Config{MailSource: config.SourceEML, EMLDir: t.TempDir()}, logger.Discard())
	require.NoError(t, err)
	assert.NotNil(t, src)
}

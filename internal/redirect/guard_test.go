package redirect_test

import (
	"testing"

	"github.com/serroba/shortlink-go/internal/redirect"
	"github.com/stretchr/testify/assert"
)

func TestValidateTarget(t *testing.T) {
	t.Run("accepts ordinary destinations", func(t *testing.T) {
		for _, target := range []string{
			"https://example.com/page",
			"http://example.org/a?b=1",
			"https://sub.domain.example.co.uk/deep/path",
		} {
			assert.NoError(t, redirect.ValidateTarget(target), target)
		}
	})

	t.Run("rejects non-http schemes", func(t *testing.T) {
		for _, target := range []string{
			"ftp://example.com",
			"javascript:alert(1)",
			"file:///etc/passwd",
		} {
			assert.ErrorIs(t, redirect.ValidateTarget(target), redirect.ErrInvalidRedirect, target)
		}
	})

	t.Run("rejects loopback hosts", func(t *testing.T) {
		for _, target := range []string{
			"http://localhost/x",
			"http://127.0.0.1/x",
			"http://127.8.8.8/x",
			"http://[::1]/x",
		} {
			assert.ErrorIs(t, redirect.ValidateTarget(target), redirect.ErrInvalidRedirect, target)
		}
	})

	t.Run("rejects private and link-local addresses", func(t *testing.T) {
		for _, target := range []string{
			"http://10.0.0.5/x",
			"http://172.16.3.4/x",
			"http://172.31.255.255/x",
			"http://192.168.1.1/x",
			"http://169.254.169.254/latest/meta-data",
		} {
			assert.ErrorIs(t, redirect.ValidateTarget(target), redirect.ErrInvalidRedirect, target)
		}
	})

	t.Run("accepts public addresses", func(t *testing.T) {
		assert.NoError(t, redirect.ValidateTarget("http://203.0.113.9/x"))
		assert.NoError(t, redirect.ValidateTarget("http://172.32.0.1/x"))
	})

	t.Run("rejects suspicious TLDs", func(t *testing.T) {
		for _, target := range []string{
			"http://free-stuff.tk/win",
			"https://login.example.ml/",
			"http://a.ga/",
			"http://b.cf/",
		} {
			assert.ErrorIs(t, redirect.ValidateTarget(target), redirect.ErrInvalidRedirect, target)
		}
	})

	t.Run("rejects empty host", func(t *testing.T) {
		assert.ErrorIs(t, redirect.ValidateTarget("https:///path-only"), redirect.ErrInvalidRedirect)
	})
}

func TestPermanentHost(t *testing.T) {
	t.Run("allowlisted hosts are permanent", func(t *testing.T) {
		for _, target := range []string{
			"https://youtube.com/watch?v=x",
			"https://www.youtube.com/watch?v=x",
			"https://github.com/owner/repo",
			"https://x.com/status/1",
			"https://stackoverflow.com/questions/1",
		} {
			assert.True(t, redirect.PermanentHost(target), target)
		}
	})

	t.Run("everything else is temporary", func(t *testing.T) {
		for _, target := range []string{
			"https://example.com/",
			"https://notgithub.com/x",
			"https://github.com.evil.example/",
		} {
			assert.False(t, redirect.PermanentHost(target), target)
		}
	})
}

package email_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/email"
)

func TestNewPostmarkClient(t *testing.T) {
	t.Parallel()

	valid := email.Config{
		PostmarkServerToken:  "server-token",
		PostmarkAccountToken: "account-token",
		SenderEmail:          "noreply@example.com",
		SupportEmail:         "support@example.com",
	}

	tests := []struct {
		name    string
		mutate  func(*email.Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			mutate: func(c *email.Config) {},
		},
		{
			name:    "missing server token",
			mutate:  func(c *email.Config) { c.PostmarkServerToken = "" },
			wantErr: true,
		},
		{
			name:    "missing account token",
			mutate:  func(c *email.Config) { c.PostmarkAccountToken = "" },
			wantErr: true,
		},
		{
			name:    "missing sender email",
			mutate:  func(c *email.Config) { c.SenderEmail = "" },
			wantErr: true,
		},
		{
			name:    "invalid sender email",
			mutate:  func(c *email.Config) { c.SenderEmail = "not-an-email" },
			wantErr: true,
		},
		{
			name:    "missing support email",
			mutate:  func(c *email.Config) { c.SupportEmail = "" },
			wantErr: true,
		},
		{
			name:    "invalid support email",
			mutate:  func(c *email.Config) { c.SupportEmail = "support@" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)

			sender, err := email.NewPostmarkClient(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, email.ErrInvalidConfig)
				assert.Nil(t, sender)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, sender)
			}
		})
	}
}

func TestMustNewPostmarkClient_PanicsOnInvalidConfig(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		email.MustNewPostmarkClient(email.Config{})
	})
}

package bootstrap

import (
	"fmt"

	appconfig "github.com/alfredai/landing-leads/internal/config"
	"github.com/alfredai/landing-leads/internal/notify"
	"github.com/alfredai/landing-leads/pkg/logging"
)

// BuildEmailSender picks the outbound email provider. sesClient is only
// consulted for the SES provider. Providers missing their credentials fall
// back to the stub sender so submissions keep working.
func BuildEmailSender(cfg *appconfig.Config, sesClient notify.SESAPI, logger *logging.Logger) (notify.EmailSender, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	from := notify.SenderConfig{FromEmail: cfg.FromEmail, FromName: cfg.FromName}
	provider := cfg.EmailProviderName()

	switch provider {
	case appconfig.EmailProviderSMTP:
		if s := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		}, from, logger); s != nil {
			return s, provider, nil
		}
	case appconfig.EmailProviderSendGrid:
		if s := notify.NewSendGridSender(cfg.SendGridAPIKey, from, logger); s != nil {
			return s, provider, nil
		}
	case appconfig.EmailProviderSES:
		if s := notify.NewSESSender(sesClient, from, logger); s != nil {
			return s, provider, nil
		}
	}

	if provider != appconfig.EmailProviderStub {
		logger.Warn("email provider not fully configured, using stub sender", "provider", provider)
	}
	return notify.NewStubEmailSender(logger), appconfig.EmailProviderStub, nil
}

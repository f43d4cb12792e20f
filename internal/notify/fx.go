package notify

import (
	"github.com/splitnest/splitnest/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewNotifier(cfg config.Config, log *zap.Logger) Notifier {
	if cfg.NotifyWebhookURL == "" {
		log.Info("notify webhook not configured, house warnings are dropped")
		return NoOpNotifier{}
	}
	return NewWebhookNotifier(cfg.NotifyWebhookURL)
}

var Module = fx.Module("notify",
	fx.Provide(NewNotifier),
)

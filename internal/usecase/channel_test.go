//go:build !integration

package usecase_test

import (
	"testing"
	"time"

	"stillpoint/internal/domain/model"
	"stillpoint/internal/usecase"
)

func TestResolveChannel(t *testing.T) {
	newer := time.Now()
	older := newer.Add(-time.Hour)
	fcm := &model.PushDevice{ID: "d-fcm", Channel: model.ChannelFCM, RegisteredAt: older}
	webpush := &model.PushDevice{ID: "d-wp", Channel: model.ChannelWebPush, RegisteredAt: newer}

	t.Run("should honor an explicit fcm preference even when webpush is newer", func(t *testing.T) {
		prefs := model.NotificationPrefs{Channel: model.ChannelPrefFCM}

		ch, dev := usecase.ResolveChannel(prefs, []*model.PushDevice{webpush, fcm})

		if ch != model.ChannelFCM || dev != fcm {
			t.Fatalf("expected fcm/d-fcm, got %s/%+v", ch, dev)
		}
	})

	t.Run("should return a nil device when the preferred channel has none", func(t *testing.T) {
		prefs := model.NotificationPrefs{Channel: model.ChannelPrefWebPush}

		ch, dev := usecase.ResolveChannel(prefs, []*model.PushDevice{fcm})

		if ch != model.ChannelWebPush || dev != nil {
			t.Fatalf("expected webpush/nil, got %s/%+v", ch, dev)
		}
	})

	t.Run("should pick webpush in auto mode when it is the newest device", func(t *testing.T) {
		prefs := model.NotificationPrefs{Channel: model.ChannelPrefAuto}

		// Repositories return devices newest-registered first.
		ch, dev := usecase.ResolveChannel(prefs, []*model.PushDevice{webpush, fcm})

		if ch != model.ChannelWebPush || dev != webpush {
			t.Fatalf("expected webpush/d-wp, got %s/%+v", ch, dev)
		}
	})

	t.Run("should fall back to fcm in auto mode when it is the newest device", func(t *testing.T) {
		prefs := model.NotificationPrefs{Channel: model.ChannelPrefAuto}

		newerFCM := &model.PushDevice{ID: "d-fcm2", Channel: model.ChannelFCM, RegisteredAt: newer}
		olderWP := &model.PushDevice{ID: "d-wp2", Channel: model.ChannelWebPush, RegisteredAt: older}
		ch, dev := usecase.ResolveChannel(prefs, []*model.PushDevice{newerFCM, olderWP})

		if ch != model.ChannelFCM || dev != newerFCM {
			t.Fatalf("expected fcm/d-fcm2, got %s/%+v", ch, dev)
		}
	})

	t.Run("should resolve to fcm with no device when the user has none", func(t *testing.T) {
		prefs := model.NotificationPrefs{Channel: model.ChannelPrefAuto}

		ch, dev := usecase.ResolveChannel(prefs, nil)

		if ch != model.ChannelFCM || dev != nil {
			t.Fatalf("expected fcm/nil, got %s/%+v", ch, dev)
		}
	})
}

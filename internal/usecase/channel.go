package usecase

import "stillpoint/internal/domain/model"

// ResolveChannel picks the delivery channel and device for a user. Pure on
// purpose: preferences and devices in, channel and device out.
//
// An explicit preference wins; with "auto", the Apple web-push device is
// preferred when it is the most recently registered one, otherwise the
// Google-push device. devices must be sorted newest-registered first (the
// repository contract). A nil device means no device serves the resolved
// channel.
func ResolveChannel(prefs model.NotificationPrefs, devices []*model.PushDevice) (model.Channel, *model.PushDevice) {
	switch prefs.Channel {
	case model.ChannelPrefFCM:
		return model.ChannelFCM, firstOnChannel(devices, model.ChannelFCM)
	case model.ChannelPrefWebPush:
		return model.ChannelWebPush, firstOnChannel(devices, model.ChannelWebPush)
	}

	if len(devices) == 0 {
		return model.ChannelFCM, nil
	}
	if devices[0].Channel == model.ChannelWebPush {
		return model.ChannelWebPush, devices[0]
	}
	return model.ChannelFCM, firstOnChannel(devices, model.ChannelFCM)
}

func firstOnChannel(devices []*model.PushDevice, ch model.Channel) *model.PushDevice {
	for _, d := range devices {
		if d.Channel == ch {
			return d
		}
	}
	return nil
}

package malgo

import (
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiobridge/internal/audioio"
	"github.com/tphakala/audiobridge/internal/errors"
)

// getBackendForPlatform returns the appropriate malgo backend for the current platform
func getBackendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.New(errors.NewStd("unsupported operating system")).
			Component(componentMalgo).
			Category(errors.CategoryAudioDevice).
			Context("os", runtime.GOOS).
			Build()
	}
}

// deviceEntry is one enumerated device. miniaudio lists capture and
// playback devices separately; indices run over captures first.
type deviceEntry struct {
	info    malgo.DeviceInfo
	capture bool
}

func initContext() (*malgo.AllocatedContext, error) {
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(componentMalgo).
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Context("backend", runtime.GOOS).
			Build()
	}
	return ctx, nil
}

func freeContext(ctx *malgo.AllocatedContext) {
	_ = ctx.Uninit()
	ctx.Free()
}

// enumerate lists capture then playback devices, skipping the null device.
func enumerate(ctx *malgo.AllocatedContext) ([]deviceEntry, error) {
	var entries []deviceEntry
	for _, kind := range []malgo.DeviceType{malgo.Capture, malgo.Playback} {
		infos, err := ctx.Devices(kind)
		if err != nil {
			return nil, errors.New(err).
				Component(componentMalgo).
				Category(errors.CategoryAudioDevice).
				Context("operation", "enumerate_devices").
				Build()
		}
		for i := range infos {
			if strings.Contains(infos[i].Name(), "Discard all samples") {
				continue
			}
			entries = append(entries, deviceEntry{info: infos[i], capture: kind == malgo.Capture})
		}
	}
	return entries, nil
}

// maxChannels returns the largest channel count among the native formats,
// 0 when the backend did not report any.
func maxChannels(info *malgo.DeviceInfo) int {
	n := 0
	for i := 0; i < int(info.FormatCount) && i < len(info.Formats); i++ {
		n = max(n, int(info.Formats[i].Channels))
	}
	return n
}

func convertDevices(entries []deviceEntry, backend string) []audioio.DeviceInfo {
	devices := make([]audioio.DeviceInfo, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		dev := audioio.DeviceInfo{
			Index:   i,
			Name:    e.info.Name(),
			HostAPI: backend,
		}
		channels := maxChannels(&e.info)
		if e.capture {
			dev.MaxInputChannels = channels
			dev.DefaultInput = e.info.IsDefault == 1
		} else {
			dev.MaxOutputChannels = channels
			dev.DefaultOutput = e.info.IsDefault == 1
		}
		devices = append(devices, dev)
	}
	return devices
}

// pickDevice resolves a device index for a direction. An index that names
// a device of the other direction falls back to the default device.
func pickDevice(entries []deviceEntry, id int, isInput bool) (*deviceEntry, error) {
	if id >= 0 && id < len(entries) && entries[id].capture == isInput {
		return &entries[id], nil
	}
	var first *deviceEntry
	for i := range entries {
		if entries[i].capture != isInput {
			continue
		}
		if entries[i].info.IsDefault == 1 {
			return &entries[i], nil
		}
		if first == nil {
			first = &entries[i]
		}
	}
	if first != nil {
		return first, nil
	}
	direction := "playback"
	if isInput {
		direction = "capture"
	}
	return nil, errors.New(errors.NewStd("no " + direction + " device available")).
		Component(componentMalgo).
		Category(errors.CategoryAudioDevice).
		Context("device_id", id).
		Build()
}

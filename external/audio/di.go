package audio

import (
	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.Codec, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.AudioCodec == config.AudioCodecFFmpeg {
			return NewFFmpegCodec(c.FFmpegPath, c.SampleRate), nil
		}
		return NewNativeCodec(c.SampleRate), nil
	})
	do.Provide(injector, func(i do.Injector) (*audio.Detector, error) {
		c := do.MustInvoke[*config.Config](i)
		return audio.NewDetector(audio.DetectorConfig{
			MinSilenceMs: c.SilenceMinMs,
			ThresholdDB:  c.SilenceThresholdDB,
			SeekStepMs:   c.SilenceSeekStepMs,
		}), nil
	})
}

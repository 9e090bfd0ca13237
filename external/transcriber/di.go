package transcriber

import (
	audioimpl "github.com/foxseedlab/segmentd/external/audio"
	"github.com/foxseedlab/segmentd/internal/audio"
	"github.com/foxseedlab/segmentd/internal/config"
	"github.com/foxseedlab/segmentd/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Engine, error) {
		c := do.MustInvoke[*config.Config](i)
		switch c.STTProvider {
		case config.STTProviderOpenAI:
			return NewOpenAIEngine(c.OpenAIAPIKey, c.OpenAITranscribeModel, audioimpl.NewNativeCodec(c.SampleRate)), nil
		case config.STTProviderNone:
			return NewNoopEngine(), nil
		default:
			return NewCloudSpeechEngine(CloudSpeechConfig{
				ProjectID:       c.GoogleCloudProjectID,
				CredentialsJSON: c.GoogleCloudCredentials,
				Location:        c.GoogleCloudLocation,
				Model:           c.GoogleCloudSpeechModel,
			}), nil
		}
	})
	do.Provide(injector, func(i do.Injector) (*transcriber.SegmentTranscriber, error) {
		c := do.MustInvoke[*config.Config](i)
		codec := do.MustInvoke[audio.Codec](i)
		engine := do.MustInvoke[transcriber.Engine](i)
		return transcriber.NewSegmentTranscriber(codec, engine, c.TranscribeLanguage), nil
	})
}

package pestnet

import "github.com/gardenlab/pestnet-go/internal/conf"

// ResolverConfigFromSettings maps the model, fallback and ONNX settings onto
// a ResolverConfig.
func ResolverConfigFromSettings(settings *conf.Settings) ResolverConfig {
	fb := settings.Model.Fallback
	train := DefaultTrainConfig()
	if fb.Samples > 0 {
		train.Samples = fb.Samples
	}
	if fb.Epochs > 0 {
		train.Epochs = fb.Epochs
	}
	if fb.BatchSize > 0 {
		train.BatchSize = fb.BatchSize
	}
	if fb.LearningRate > 0 {
		train.LearningRate = fb.LearningRate
	}
	train.Seed = fb.Seed

	return ResolverConfig{
		ModelDir:        settings.Model.Dir,
		ExtraWeights:    settings.Model.ExtraWeights,
		ONNXLibraryPath: settings.ONNX.LibraryPath,
		Fallback:        fb.Enabled,
		Train:           train,
	}
}

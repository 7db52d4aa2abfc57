//go:build !tflite

package pestnet

import "github.com/gardenlab/pestnet-go/internal/errors"

// TFLiteSupported reports whether .tflite artifacts can be loaded.
const TFLiteSupported = false

func loadTFLiteModel(path string) (Classifier, error) {
	return nil, errors.Newf("tflite support not compiled in, rebuild with -tags tflite").
		Component("pestnet").
		Category(errors.CategoryModelLoad).
		Context("path", path).
		Build()
}

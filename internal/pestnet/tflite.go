//go:build tflite

package pestnet

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/tphakala/go-tflite"
	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/logger"
)

// TFLiteSupported reports whether .tflite artifacts can be loaded.
const TFLiteSupported = true

// tfliteClassifier wraps a TensorFlow Lite interpreter. The interpreter owns
// its tensors, so Predict is serialised.
type tfliteClassifier struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	source      string
}

func loadTFLiteModel(path string) (Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("cannot load TensorFlow Lite model")
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(max(1, runtime.NumCPU()-1))
	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("message", msg))
	}, nil)

	c := &tfliteClassifier{model: model, options: options, source: fmt.Sprintf("%s:%s", StrategyComplete, path)}
	c.interpreter = tflite.NewInterpreter(model, options)
	if c.interpreter == nil {
		_ = c.Close()
		return nil, fmt.Errorf("cannot create interpreter")
	}
	if status := c.interpreter.AllocateTensors(); status != tflite.OK {
		_ = c.Close()
		return nil, fmt.Errorf("tensor allocation failed")
	}

	in := c.interpreter.GetInputTensor(0)
	out := c.interpreter.GetOutputTensor(0)
	if in == nil || out == nil {
		_ = c.Close()
		return nil, fmt.Errorf("cannot get model tensors")
	}
	if in.NumDims() != 4 || in.Dim(1) != InputHeight || in.Dim(2) != InputWidth || in.Dim(3) != InputChannels {
		_ = c.Close()
		return nil, fmt.Errorf("model input is not [1 %d %d %d]", InputHeight, InputWidth, InputChannels)
	}
	if classes := out.Dim(out.NumDims() - 1); classes != NumClasses {
		_ = c.Close()
		return nil, fmt.Errorf("model has %d outputs, want %d", classes, NumClasses)
	}
	return c, nil
}

func (c *tfliteClassifier) Predict(input *tensor.Dense) ([]float32, error) {
	img, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	copy(c.interpreter.GetInputTensor(0).Float32s(), img)
	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}
	probs := make([]float32, NumClasses)
	copy(probs, c.interpreter.GetOutputTensor(0).Float32s())
	return probs, nil
}

func (c *tfliteClassifier) Source() string { return c.source }

func (c *tfliteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.options != nil {
		c.options.Delete()
		c.options = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}

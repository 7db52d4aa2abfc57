package pestnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

const directoryMetadataFile = "metadata.json"

// Tensor layouts accepted in directory metadata.
const (
	LayoutNHWC = "NHWC"
	LayoutNCHW = "NCHW"
)

// directoryMetadata describes an exported model directory.
type directoryMetadata struct {
	ModelFile    string   `json:"model_file"`
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	Layout       string   `json:"layout"`
	Classes      []string `json:"classes"`
	ApplySoftmax bool     `json:"apply_softmax"`
}

func readDirectoryMetadata(dir string) (*directoryMetadata, error) {
	body, err := os.ReadFile(filepath.Join(dir, directoryMetadataFile))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", directoryMetadataFile, err)
	}
	md := &directoryMetadata{
		ModelFile:  "model.onnx",
		InputName:  "input",
		OutputName: "output",
		Layout:     LayoutNHWC,
	}
	if err := json.Unmarshal(body, md); err != nil {
		return nil, fmt.Errorf("decode %s: %w", directoryMetadataFile, err)
	}
	if md.Layout != LayoutNHWC && md.Layout != LayoutNCHW {
		return nil, fmt.Errorf("unsupported layout %q", md.Layout)
	}
	if len(md.Classes) > 0 && !slices.Equal(md.Classes, Labels[:]) {
		return nil, fmt.Errorf("model classes %v do not match the label set", md.Classes)
	}
	return md, nil
}

var (
	ortOnce sync.Once
	ortErr  error
)

// initONNXRuntime loads the onnxruntime shared library once per process.
func initONNXRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ShutdownONNXRuntime releases the runtime if a directory model initialised it.
func ShutdownONNXRuntime() {
	if ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// onnxClassifier runs a directory-format model. Its tensors are bound to the
// session, so Predict is serialised.
type onnxClassifier struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	meta    *directoryMetadata
	source  string
}

// loadDirectoryModel opens dir as a directory-format model.
func loadDirectoryModel(dir, libraryPath string) (Classifier, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, errArtifactMissing
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	meta, err := readDirectoryMetadata(dir)
	if err != nil {
		return nil, err
	}
	modelPath := filepath.Join(dir, meta.ModelFile)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initONNXRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("onnxruntime unavailable: %w", err)
	}

	inputShape := ort.NewShape(1, InputHeight, InputWidth, InputChannels)
	if meta.Layout == LayoutNCHW {
		inputShape = ort.NewShape(1, InputChannels, InputHeight, InputWidth)
	}
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, NumClasses))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &onnxClassifier{
		session: session,
		input:   input,
		output:  output,
		meta:    meta,
		source:  fmt.Sprintf("%s:%s", StrategyDirectory, dir),
	}, nil
}

func (c *onnxClassifier) Predict(in *tensor.Dense) ([]float32, error) {
	img, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dst := c.input.GetData()
	if c.meta.Layout == LayoutNCHW {
		nhwcToNCHW(dst, img)
	} else {
		copy(dst, img)
	}
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	probs := make([]float32, NumClasses)
	copy(probs, c.output.GetData())
	if c.meta.ApplySoftmax {
		softmax(probs)
	}
	return probs, nil
}

func (c *onnxClassifier) Source() string { return c.source }

func (c *onnxClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.session != nil {
		errs = append(errs, c.session.Destroy())
		c.session = nil
	}
	if c.input != nil {
		errs = append(errs, c.input.Destroy())
		c.input = nil
	}
	if c.output != nil {
		errs = append(errs, c.output.Destroy())
		c.output = nil
	}
	return errors.Join(errs...)
}

// nhwcToNCHW transposes one image from interleaved to planar channels.
func nhwcToNCHW(dst, src []float32) {
	plane := InputHeight * InputWidth
	for i := range plane {
		for ch := range InputChannels {
			dst[ch*plane+i] = src[i*InputChannels+ch]
		}
	}
}

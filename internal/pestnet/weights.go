package pestnet

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gorgonia.org/tensor"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

// NamedTensor is one entry of a weights file.
type NamedTensor struct {
	Name   string
	Tensor *tensor.Dense
}

// WeightPolicy selects how stored tensors are matched to network slots.
type WeightPolicy int

const (
	// PolicyExact requires the same tensors in the same order with matching names and shapes.
	PolicyExact WeightPolicy = iota + 1
	// PolicyByName matches by name and fails on any shape mismatch.
	PolicyByName
	// PolicyByNameSkipMismatch matches by name and skips tensors whose shape differs.
	PolicyByNameSkipMismatch
	// PolicyPositionalSkipMismatch matches by position and skips tensors whose shape differs.
	PolicyPositionalSkipMismatch
	// PolicyPositional requires the same number of tensors with matching shapes
	// in order. Names are ignored.
	PolicyPositional
)

// WeightPolicies is the order in which weights-only artifacts are tried, strictest first.
var WeightPolicies = []WeightPolicy{
	PolicyExact,
	PolicyByName,
	PolicyByNameSkipMismatch,
	PolicyPositionalSkipMismatch,
}

func (p WeightPolicy) String() string {
	switch p {
	case PolicyExact:
		return "exact"
	case PolicyByName:
		return "by-name"
	case PolicyByNameSkipMismatch:
		return "by-name-skip-mismatch"
	case PolicyPositionalSkipMismatch:
		return "positional-skip-mismatch"
	case PolicyPositional:
		return "positional"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Lenient reports whether the policy may leave slots at their initial values.
func (p WeightPolicy) Lenient() bool {
	return p == PolicyByNameSkipMismatch || p == PolicyPositionalSkipMismatch
}

// LoadReport describes what a weight policy applied.
type LoadReport struct {
	Policy  WeightPolicy
	Loaded  []string
	Skipped []string
}

type stagedCopy struct {
	slot weightSlot
	data []float32
}

// LoadWeights copies tensors into the network according to policy. Nothing is
// written unless the whole policy succeeds and at least one tensor matched.
func (n *Network) LoadWeights(tensors []NamedTensor, policy WeightPolicy) (*LoadReport, error) {
	slots := n.weightSlots()
	report := &LoadReport{Policy: policy}
	var staged []stagedCopy

	stage := func(slot weightSlot, nt NamedTensor, strict bool) error {
		if !slices.Equal(slot.tensor.Shape(), nt.Tensor.Shape()) {
			if strict {
				return fmt.Errorf("tensor %s: shape %v does not match %s %v",
					nt.Name, nt.Tensor.Shape(), slot.name, slot.tensor.Shape())
			}
			report.Skipped = append(report.Skipped, nt.Name)
			return nil
		}
		data, err := float32Data(nt.Tensor)
		if err != nil {
			return fmt.Errorf("tensor %s: %w", nt.Name, err)
		}
		staged = append(staged, stagedCopy{slot: slot, data: data})
		report.Loaded = append(report.Loaded, slot.name)
		return nil
	}

	switch policy {
	case PolicyExact:
		if len(tensors) != len(slots) {
			return nil, fmt.Errorf("weights file has %d tensors, network has %d", len(tensors), len(slots))
		}
		for i, slot := range slots {
			if tensors[i].Name != slot.name {
				return nil, fmt.Errorf("tensor %d is %s, want %s", i, tensors[i].Name, slot.name)
			}
			if err := stage(slot, tensors[i], true); err != nil {
				return nil, err
			}
		}

	case PolicyPositional:
		if len(tensors) != len(slots) {
			return nil, fmt.Errorf("weights file has %d tensors, network has %d", len(tensors), len(slots))
		}
		for i, slot := range slots {
			if err := stage(slot, tensors[i], true); err != nil {
				return nil, err
			}
		}

	case PolicyByName, PolicyByNameSkipMismatch:
		byName := make(map[string]weightSlot, len(slots))
		for _, slot := range slots {
			byName[slot.name] = slot
		}
		for _, nt := range tensors {
			slot, ok := byName[nt.Name]
			if !ok {
				report.Skipped = append(report.Skipped, nt.Name)
				continue
			}
			if err := stage(slot, nt, policy == PolicyByName); err != nil {
				return nil, err
			}
		}

	case PolicyPositionalSkipMismatch:
		for i := range min(len(slots), len(tensors)) {
			if err := stage(slots[i], tensors[i], false); err != nil {
				return nil, err
			}
		}
		for _, nt := range tensors[min(len(slots), len(tensors)):] {
			report.Skipped = append(report.Skipped, nt.Name)
		}

	default:
		return nil, fmt.Errorf("unknown weight policy %d", int(policy))
	}

	if len(staged) == 0 {
		return nil, fmt.Errorf("policy %s matched no tensors", policy)
	}
	for _, s := range staged {
		copy(s.slot.tensor.Data().([]float32), s.data)
	}
	return report, nil
}

// Weights returns the network tensors in canonical order.
func (n *Network) Weights() []NamedTensor {
	slots := n.weightSlots()
	out := make([]NamedTensor, len(slots))
	for i, s := range slots {
		out[i] = NamedTensor{Name: s.name, Tensor: s.tensor}
	}
	return out
}

func float32Data(t *tensor.Dense) ([]float32, error) {
	switch d := t.Data().(type) {
	case []float32:
		return d, nil
	case []float64:
		out := make([]float32, len(d))
		for i, v := range d {
			out[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %v", t.Dtype())
	}
}

const npyExt = ".npy"

// writeTensors stores each tensor as <prefix><name>.npy, preserving order.
func writeTensors(zw *zip.Writer, prefix string, tensors []NamedTensor) error {
	for _, nt := range tensors {
		w, err := zw.Create(prefix + nt.Name + npyExt)
		if err != nil {
			return err
		}
		if err := nt.Tensor.WriteNpy(w); err != nil {
			return fmt.Errorf("write %s: %w", nt.Name, err)
		}
	}
	return nil
}

// readTensors loads every <prefix>*.npy entry in archive order.
func readTensors(files []*zip.File, prefix string) ([]NamedTensor, error) {
	var out []NamedTensor
	for _, f := range files {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, npyExt) {
			continue
		}
		t, err := readNpy(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(f.Name, prefix), npyExt)
		out = append(out, NamedTensor{Name: name, Tensor: t})
	}
	return out, nil
}

func readNpy(f *zip.File) (*tensor.Dense, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t := new(tensor.Dense)
	if err := t.ReadNpy(rc); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadWeightsFile reads an .npz weights archive.
func ReadWeightsFile(path string) ([]NamedTensor, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.New(err).
			Component("pestnet").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer zr.Close()

	tensors, err := readTensors(zr.File, "")
	if err != nil {
		return nil, errors.New(err).
			Component("pestnet").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	if len(tensors) == 0 {
		return nil, errors.Newf("weights file %s contains no tensors", filepath.Base(path)).
			Component("pestnet").
			Category(errors.CategoryFileParsing).
			Build()
	}
	return tensors, nil
}

// SaveWeightsFile writes the network tensors to an .npz archive.
func SaveWeightsFile(path string, n *Network) error {
	return writeFileAtomic(path, func(f *os.File) error {
		zw := zip.NewWriter(f)
		if err := writeTensors(zw, "", n.Weights()); err != nil {
			return err
		}
		return zw.Close()
	})
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place, so readers never see a partial file.
func writeFileAtomic(path string, write func(*os.File) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

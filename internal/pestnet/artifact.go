package pestnet

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

// ArtifactExt is the extension of complete model artifacts.
const ArtifactExt = ".pnm"

const (
	manifestEntry  = "model.json"
	weightsPrefix  = "weights/"
	artifactFormat = "pestnet-model"
	formatVersion  = 1
)

// manifest is the model.json entry of a complete artifact.
type manifest struct {
	Format       string        `json:"format"`
	Version      int           `json:"version"`
	Architecture *Architecture `json:"architecture"`
	CreatedAt    time.Time     `json:"created_at"`
	Origin       string        `json:"origin,omitempty"`
}

// SaveArtifact writes a complete artifact: architecture, compile config and
// weights in one zip file. origin is free text such as "fallback".
func SaveArtifact(path string, n *Network, origin string) error {
	m := manifest{
		Format:       artifactFormat,
		Version:      formatVersion,
		Architecture: n.Architecture(),
		CreatedAt:    time.Now().UTC(),
		Origin:       origin,
	}
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	err = writeFileAtomic(path, func(f *os.File) error {
		zw := zip.NewWriter(f)
		w, err := zw.Create(manifestEntry)
		if err != nil {
			return err
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
		if err := writeTensors(zw, weightsPrefix, n.Weights()); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return errors.New(fmt.Errorf("save artifact: %w", err)).
			Component("pestnet").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return nil
}

// LoadArtifact reads a complete artifact and recompiles it with the default
// compile configuration.
func LoadArtifact(path string) (*Network, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer zr.Close()

	var m *manifest
	for _, f := range zr.File {
		if f.Name != manifestEntry {
			continue
		}
		if m, err = readManifest(f); err != nil {
			return nil, err
		}
		break
	}
	if m == nil {
		return nil, fmt.Errorf("artifact has no %s", manifestEntry)
	}
	if m.Format != artifactFormat || m.Version != formatVersion {
		return nil, fmt.Errorf("unsupported artifact format %q version %d", m.Format, m.Version)
	}
	if m.Architecture == nil {
		return nil, fmt.Errorf("artifact manifest has no architecture")
	}

	n, err := NewNetwork(m.Architecture, rand.New(rand.NewPCG(0, 0)))
	if err != nil {
		return nil, err
	}
	tensors, err := readTensors(zr.File, weightsPrefix)
	if err != nil {
		return nil, err
	}
	if _, err := n.LoadWeights(tensors, PolicyExact); err != nil {
		return nil, fmt.Errorf("artifact weights: %w", err)
	}
	n.Compile(DefaultCompileConfig())
	return n, nil
}

func readManifest(f *zip.File) (*manifest, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", manifestEntry, err)
	}
	return &m, nil
}

// SaveArchitectureFile writes the network architecture as standalone JSON.
func SaveArchitectureFile(path string, n *Network) error {
	body, err := n.Architecture().Marshal()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, func(f *os.File) error {
		_, err := f.Write(body)
		return err
	})
}

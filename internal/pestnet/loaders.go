package pestnet

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/logger"
)

func loadComplete(path string) (Classifier, error) {
	if strings.EqualFold(filepath.Ext(path), ".tflite") {
		return loadTFLiteModel(path)
	}
	net, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	net.setSource(StrategyComplete, path)
	return net, nil
}

func loadArchitectureWeights(archPath, weightsPath string) (Classifier, error) {
	body, err := os.ReadFile(archPath)
	if err != nil {
		return nil, err
	}
	arch, err := ParseArchitecture(body)
	if err != nil {
		return nil, err
	}
	net, err := NewNetwork(arch, rand.New(rand.NewPCG(0, 0)))
	if err != nil {
		return nil, err
	}
	tensors, err := ReadWeightsFile(weightsPath)
	if err != nil {
		return nil, err
	}
	if _, err := net.LoadWeights(tensors, PolicyPositional); err != nil {
		return nil, err
	}
	net.Compile(DefaultCompileConfig())
	net.setSource(StrategyArchitectureWeights, weightsPath)
	return net, nil
}

// loadWeightsOnly rebuilds the default architecture and tries each weight
// policy in order, strictest first.
func (r *Resolver) loadWeightsOnly(path string) (Classifier, error) {
	tensors, err := ReadWeightsFile(path)
	if err != nil {
		return nil, err
	}
	net, err := NewNetwork(DefaultArchitecture(), rand.New(rand.NewPCG(0, 0)))
	if err != nil {
		return nil, err
	}

	var policyErrs []error
	for _, policy := range WeightPolicies {
		report, err := net.LoadWeights(tensors, policy)
		if err != nil {
			r.log.Debug("weight policy rejected",
				logger.String("path", path),
				logger.String("policy", policy.String()),
				logger.Error(err))
			policyErrs = append(policyErrs, fmt.Errorf("%s: %w", policy, err))
			continue
		}
		if policy.Lenient() || len(report.Skipped) > 0 {
			r.log.Warn("weights loaded leniently, some layers may keep initial values",
				logger.String("path", path),
				logger.String("policy", policy.String()),
				logger.Int("loaded", len(report.Loaded)),
				logger.Any("skipped", report.Skipped))
		}
		net.Compile(DefaultCompileConfig())
		net.setSource(StrategyWeightsOnly, path)
		return net, nil
	}
	return nil, errors.Join(policyErrs...)
}

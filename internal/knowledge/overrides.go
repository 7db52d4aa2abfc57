package knowledge

import (
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gardenlab/pestnet-go/internal/errors"
	"github.com/gardenlab/pestnet-go/internal/logger"
	"github.com/gardenlab/pestnet-go/internal/pestnet"
)

// overrideFile is the YAML layout accepted by LoadOverrides:
//
//	pests:
//	  slug:
//	    severity: High
//	treatments:
//	  slug:
//	    prevention: [Copper tape barriers]
type overrideFile struct {
	Pests      map[string]PestInfo  `yaml:"pests"`
	Treatments map[string]Treatment `yaml:"treatments"`
}

// LoadOverrides returns a copy of b with the entries from a YAML file merged
// in. Non-empty fields replace built-in values; a label without a built-in
// entry starts from the defaults.
func (b *Base) LoadOverrides(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("knowledge").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.New(err).
			Component("knowledge").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}

	merged := &Base{info: maps.Clone(b.info), treatments: maps.Clone(b.treatments)}
	log := logger.Global().Module("knowledge")

	for label, o := range file.Pests {
		if pestnet.LabelIndex(label) < 0 {
			log.Warn("knowledge override for unknown label", logger.String("label", label))
		}
		cur, ok := merged.info[label]
		if !ok {
			cur = defaultInfo(label)
		}
		merged.info[label] = mergeInfo(cur, o)
	}
	for label, o := range file.Treatments {
		if pestnet.LabelIndex(label) < 0 {
			log.Warn("treatment override for unknown label", logger.String("label", label))
		}
		cur, ok := merged.treatments[label]
		if !ok {
			cur = defaultTreatment()
		}
		merged.treatments[label] = mergeTreatment(cur, o)
	}

	log.Info("knowledge overrides loaded",
		logger.String("path", path),
		logger.Int("pests", len(file.Pests)),
		logger.Int("treatments", len(file.Treatments)))
	return merged, nil
}

func mergeInfo(cur, o PestInfo) PestInfo {
	if o.Name != "" {
		cur.Name = o.Name
	}
	if o.Description != "" {
		cur.Description = o.Description
	}
	if len(o.Symptoms) > 0 {
		cur.Symptoms = o.Symptoms
	}
	if o.Causes != "" {
		cur.Causes = o.Causes
	}
	if o.Severity != "" {
		cur.Severity = o.Severity
	}
	return cur
}

func mergeTreatment(cur, o Treatment) Treatment {
	if len(o.Prevention) > 0 {
		cur.Prevention = o.Prevention
	}
	if len(o.Treatment) > 0 {
		cur.Treatment = o.Treatment
	}
	if len(o.OrganicSolutions) > 0 {
		cur.OrganicSolutions = o.OrganicSolutions
	}
	return cur
}

package pestnet

import (
	"sync/atomic"

	"github.com/gardenlab/pestnet-go/internal/errors"
)

type published struct {
	classifier Classifier
}

// Handle publishes the process-wide classifier. It is set once at startup and
// read without locking by request handlers.
type Handle struct {
	p atomic.Pointer[published]
}

// Set publishes c. A second call fails so the served model never changes underneath requests.
func (h *Handle) Set(c Classifier) error {
	if c == nil {
		return errors.NewStd("cannot publish a nil classifier")
	}
	if !h.p.CompareAndSwap(nil, &published{classifier: c}) {
		return errors.NewStd("classifier already published")
	}
	return nil
}

// Get returns the published classifier or nil.
func (h *Handle) Get() Classifier {
	if p := h.p.Load(); p != nil {
		return p.classifier
	}
	return nil
}

func (h *Handle) Loaded() bool {
	return h.p.Load() != nil
}

// Close unpublishes and releases the classifier.
func (h *Handle) Close() error {
	p := h.p.Swap(nil)
	if p == nil {
		return nil
	}
	return p.classifier.Close()
}

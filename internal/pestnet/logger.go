package pestnet

import (
	"sync"

	"github.com/gardenlab/pestnet-go/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the logger scoped to the pestnet module.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("pestnet")
	})
	return serviceLogger
}

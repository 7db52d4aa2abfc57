package observability

import "github.com/gardenlab/pestnet-go/internal/logger"

var log = logger.Global().Module("metrics")

package adaptivity

import (
	"go.uber.org/zap"
)

// Summary logs one line per iteration. The error and efficiency index are
// included when a reference value is configured.
func Summary(logger *zap.Logger, data []Datum) {
	if len(data) == 0 {
		logger.Info("adaptive summary: no iterations")
		return
	}
	logger.Info("adaptive summary", zap.Int("iterations", len(data)))
	for _, d := range data {
		fields := []zap.Field{
			zap.Int("level", d.Iteration),
			zap.Int("dofs", d.NumDofs),
			zap.Int("cells", d.NumCells),
			zap.Float64("functional", d.FunctionalValue),
			zap.Float64("error_estimate", d.ErrorEstimate),
			zap.Float64("tolerance", d.Tolerance),
		}
		if d.Reference != 0 {
			fields = append(fields,
				zap.Float64("reference", d.Reference),
				zap.Float64("error", d.Error()),
				zap.Float64("efficiency", d.Efficiency()))
		}
		logger.Info("level", fields...)
	}
}

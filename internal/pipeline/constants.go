package pipeline

// Default values for the menu merge pipeline.
// Most are overridden by configuration.
const (
	// SourceBrandColumn holds the literal brand of the source a row came from.
	// It is dropped once the derived brand column is filled in.
	SourceBrandColumn = "Source_Brand"

	// DefaultServingDivisor is the Calories divisor of the serving size proxy.
	DefaultServingDivisor = 10.0
)

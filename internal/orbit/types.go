package orbit

// PositionSample is one propagated ECEF position at a GPS second-of-week epoch.
type PositionSample struct {
	T float64 `json:"t"` // GPS seconds of week
	X float64 `json:"x"` // meters
	Y float64 `json:"y"` // meters
	Z float64 `json:"z"` // meters
}

// Config holds propagation configuration loaded from environment variables.
type Config struct {
	Workers int     // Worker pool size (default: runtime.NumCPU())
	Step    float64 // Default sampling step in seconds (default: 30)
}

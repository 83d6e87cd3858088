//go:build !linux

package gpio

// RealEdgeSource is not available on non-Linux platforms.
type RealEdgeSource struct{}

// NewRealEdgeSource returns a source whose Start always fails on non-Linux platforms.
func NewRealEdgeSource(chip string, pin int, edge Edge) *RealEdgeSource {
	return &RealEdgeSource{}
}

// Start is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Start(h EdgeHandler) error {
	return ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (s *RealEdgeSource) Close() error {
	return nil
}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutput returns an error on non-Linux platforms.
func NewRealOutput(chip string, pin int, activeLow, initial bool) (*RealOutput, error) {
	return nil, ErrNotSupported
}

// Set is not implemented on non-Linux platforms.
func (o *RealOutput) Set(on bool) error {
	return ErrNotSupported
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutput) Close() error {
	return nil
}

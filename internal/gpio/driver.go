package gpio

// Level is a digital output level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Driver is the output contract the behavior runner holds. Platform
// code provides the real implementation; tests use Fake.
type Driver interface {
	// ConfigureOutput claims the pin as a digital output, initially
	// low. Reconfiguring to a different pin releases the previous one.
	ConfigureOutput(pin int) error

	// SetLevel drives the configured pin.
	SetLevel(level Level) error

	// Close releases the pin and underlying chip resources.
	Close() error
}

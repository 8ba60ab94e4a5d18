package addressing

import "fmt"

// A ConfigError reports a cache geometry parameter that cannot describe a
// set-associative cache.
type ConfigError struct {
	Field  string
	Value  int
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid cache config: %s=%d: %s",
		e.Field, e.Value, e.Reason)
}

// An AddressOutOfRangeError is returned when an address does not fit in the
// address width of the cache.
type AddressOutOfRangeError struct {
	Address      uint64
	AddressWidth int
}

func (e *AddressOutOfRangeError) Error() string {
	return fmt.Sprintf("address 0x%x does not fit in %d bits",
		e.Address, e.AddressWidth)
}

package mqtt

import "errors"

// ErrNotConnected is returned when publishing before the broker connection
// was established.
var ErrNotConnected = errors.New("mqtt client not connected")

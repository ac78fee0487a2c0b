package mqtt

import "errors"

// ErrConnectTimeout indicates the broker did not accept the connection in time.
var ErrConnectTimeout = errors.New("mqtt connect timeout")

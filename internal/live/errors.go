package live

import "errors"

// ErrGatewayClosed is reported to subscriptions ended by Close or made after it.
var ErrGatewayClosed = errors.New("live gateway closed")

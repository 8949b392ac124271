package fanout

import "errors"

var (
	ErrBusClosed     = errors.New("fanout: bus is closed")
	ErrNoTopics      = errors.New("fanout: at least one topic is required")
	ErrEmptyTopic    = errors.New("fanout: topic must not be empty")
	ErrPublishFailed = errors.New("fanout: publish failed")
	ErrDecodeFailed  = errors.New("fanout: failed to decode message")
)

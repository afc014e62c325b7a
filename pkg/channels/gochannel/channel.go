// Package gochannel provides the in-memory event bus transport for single-process runs and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const DefaultBuffer = 1000

type Config struct {
	// Buffer is the number of messages queued per subscriber, DefaultBuffer when zero.
	Buffer int64
	// Persistent replays every published message to late subscribers. The messages are
	// kept for the life of the process.
	Persistent bool
}

// CreateChannel returns one GoChannel used as both publisher and subscriber.
// Publishers never wait for subscribers to acknowledge.
func CreateChannel(logger watermill.LoggerAdapter, config Config) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	if config.Buffer <= 0 {
		config.Buffer = DefaultBuffer
	}

	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: config.Buffer,
			Persistent:          config.Persistent,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

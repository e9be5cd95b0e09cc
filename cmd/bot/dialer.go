package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/JojoKaizeb/GenXuzoProject/internal/session"
)

// newDialer is the seam where a messaging-network client gets linked in.
// Deployment builds replace this constructor with one backed by a real
// client; the default refuses to dial so every other part of the gateway
// still runs.
var newDialer = func(log zerolog.Logger) session.Dialer {
	return unconfiguredDialer{}
}

type unconfiguredDialer struct{}

func (unconfiguredDialer) Dial(context.Context, string) (session.Conn, error) {
	return nil, errors.New("no messaging-network client is linked into this build")
}

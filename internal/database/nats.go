package database

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// ConnectNATS dials the NATS server used for domain events. An empty URL is
// allowed and yields a nil connection; publishing then degrades to a no-op.
func ConnectNATS(url string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url, nats.Name("assess-api"))
	if err != nil {
		return nil, fmt.Errorf("unable to connect to nats: %w", err)
	}

	return conn, nil
}

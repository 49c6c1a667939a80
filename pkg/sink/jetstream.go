package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding submissions.
	StreamName = "EDUREG_SUBMISSIONS"

	// SubjectPrefix is followed by the form slug.
	SubjectPrefix = "edureg.submissions"
)

// Subject returns the subject a form's submissions are published on.
func Subject(form string) string {
	return SubjectPrefix + "." + slug.Make(form)
}

// Embedded is an in-process NATS server with JetStream enabled and a
// client connection to it.
type Embedded struct {
	Server *server.Server
	Conn   *nats.Conn
}

// StartEmbedded starts an in-process NATS server storing JetStream data in
// dataDir. No network port is opened.
func StartEmbedded(dataDir string) (*Embedded, error) {
	opts := &server.Options{
		JetStream:  true,
		StoreDir:   dataDir,
		DontListen: true,
		NoSigs:     true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("nats server failed to start within timeout")
	}

	nc, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connecting in-process: %w", err)
	}

	return &Embedded{Server: ns, Conn: nc}, nil
}

// Close drains the connection and shuts the server down.
func (e *Embedded) Close() error {
	if e.Conn != nil {
		drained := make(chan error, 1)
		go func() { drained <- e.Conn.Drain() }()

		select {
		case err := <-drained:
			if err != nil {
				e.Conn.Close()
			}
		case <-time.After(2 * time.Second):
			e.Conn.Close()
		}
	}

	if e.Server != nil {
		e.Server.Shutdown()

		done := make(chan struct{})
		go func() {
			e.Server.WaitForShutdown()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			return errors.New("nats server shutdown timed out")
		}
	}
	return nil
}

// JetStreamSink publishes submissions as JSON to a JetStream stream. The
// submission ID is used as the message ID so retried publishes are
// de-duplicated by the server.
type JetStreamSink struct {
	js jetstream.JetStream
}

// NewJetStreamSink creates the stream if needed and returns the sink.
func NewJetStreamSink(ctx context.Context, nc *nats.Conn) (*JetStreamSink, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("creating jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{SubjectPrefix + ".>"},
		Storage:    jetstream.FileStorage,
		Duplicates: 2 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("creating stream %s: %w", StreamName, err)
	}

	return &JetStreamSink{js: js}, nil
}

// Submit publishes the submission and waits for the stream ack.
func (s *JetStreamSink) Submit(ctx context.Context, sub Submission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encoding submission: %w", err)
	}

	if _, err := s.js.Publish(ctx, Subject(sub.Form), data, jetstream.WithMsgID(sub.ID)); err != nil {
		return Unavailable(err)
	}
	return nil
}

// Count returns the number of messages in the stream.
func (s *JetStreamSink) Count(ctx context.Context) (uint64, error) {
	stream, err := s.js.Stream(ctx, StreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

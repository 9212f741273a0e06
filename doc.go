/*
Package vnats is a library for reliable, typed event publishing and consumption on top of NATS JetStream. It provides a thin client-side reliability layer over the broker's durable streams: retryable at-least-once publishing with exponential backoff, pull-based batched consumption with durable offsets, and acknowledgment-driven redelivery.

Use Case

The primary use case is exchanging "domain events" between services. A producer constructs a typed event from the catalog and the Publisher serializes and delivers it to the stream whose subjects capture the event type. Consumers hold a durable, named cursor over a stream, fetch bounded batches, and dispatch each decoded event to a caller-supplied handler. The handler owns acknowledgment: it acks on success and naks on failure, which drives the broker's redelivery up to the configured delivery ceiling.

The library is deliberately not a broker. Storage, replication, retention enforcement and offset persistence all live on the JetStream side; vnats only implements the client-side contract needed to use those primitives safely from a long-lived service.

Basic usage:

	cfg := vnats.DefaultConfig()
	client := vnats.NewClient(cfg)
	if err := client.Connect(ctx); err != nil {
		// ...
	}
	defer client.Close(ctx)

	pub := vnats.NewPublisher(client)
	evt := vnats.New(&vnats.CourseCreated{CourseID: "cs101", Title: "Intro to CS"},
		vnats.Metadata{SourceService: "schedule-service"})
	ack, err := pub.Publish(ctx, evt)
*/
package vnats

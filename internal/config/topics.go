package config

const (
	// TopicIngestMessages is the NSQ topic carrying datasource message batches to embed and upsert.
	TopicIngestMessages = "ingest.messages"

	// TopicIngestFailed receives a copy of every batch whose task ended in failure.
	TopicIngestFailed = "ingest.failed"
)

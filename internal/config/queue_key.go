package config

type QueueKeyStruct struct {
	SubmissionQueue           string
	SubmissionProcessingQueue string
	SubmissionDeadlines       string
}

var QueueKey = &QueueKeyStruct{
	SubmissionQueue:           "submission_queue",
	SubmissionProcessingQueue: "submission_queue:processing",
	SubmissionDeadlines:       "submission_queue:deadlines",
}

package config

type WorkerKeyStruct struct {
	PersistDraftsQueue string
	PersistScoresQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistDraftsQueue: "persist_drafts_queue",
	PersistScoresQueue: "persist_scores_queue",
}
